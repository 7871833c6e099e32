// Package config loads and validates the device agent configuration.
//
// Values come from defaults, then a YAML file, then CIOT_* environment
// variables. Secrets (product secret, device secret, InfluxDB token)
// should be supplied through the environment and the file kept at 0600.
//
// Usage:
//
//	cfg, err := config.Load("configs/ciotd.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Broker.URL)
package config
