// Package worker bridges tokenize and furigana requests to an external
// Python worker speaking newline-delimited JSON over stdin/stdout.
//
// The bridge owns at most one worker. Spawning walks an ordered list of
// interpreter candidates; each is started as
//
//	<binary> [args] -X utf8 -u <script>
//
// and must answer {"op":"health"} within the health timeout to be kept.
// A request that times out, or whose reply is not a JSON object, kills the
// worker. The next request spawns again from the first candidate.
//
// Callers always get a result. When the worker cannot answer, tokenize
// falls back to one token per non-whitespace character and furigana to a
// single segment spanning the text, with availability reported as false.
//
// Example usage:
//
//	b := worker.NewBridge(worker.Config{
//	    Script:     "mecab_bridge.py",
//	    Candidates: worker.DefaultCandidates(os.Getenv("GSM_PYTHON")),
//	})
//	defer b.Close()
//	res := b.Tokenize(ctx, "日本語")
package worker
