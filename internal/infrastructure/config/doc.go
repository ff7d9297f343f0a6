// Package config handles loading and validating the input server configuration.
//
// This package manages:
//   - Built-in defaults (the server runs without any config file)
//   - Loading overrides from a YAML file
//   - Overriding with environment variables (GSM_*)
//   - Validation of every section, reported together
//
// Durations in the input and worker sections use Go duration strings
// ("8ms", "3s"). Credentials should be set through the environment.
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("GSM_INPUT_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Addr())
package config
