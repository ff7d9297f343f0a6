// Package process launches helper subprocesses that talk over their
// standard streams.
//
// A Child is started in its own process group with stdin and stdout piped
// to the parent and stderr inherited. Kill stops the whole group, closes
// both pipes (unblocking a pending read) and reaps the process.
//
// There is no automatic restart here: the owner decides when a failed
// child is replaced.
//
// Example usage:
//
//	child, err := process.Start(process.Options{
//	    Name:   "mecab",
//	    Binary: "python3",
//	    Args:   []string{"-X", "utf8", "-u", "mecab_bridge.py"},
//	    Env:    []string{"PYTHONUTF8=1"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer child.Kill()
//	fmt.Fprintln(child.Stdin(), `{"op":"health"}`)
//	line, err := child.Stdout().ReadBytes('\n')
package process
