package cmd

import (
	"errors"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/cli/config"
	"github.com/numlab/numerosity/cli/reader"
	"github.com/numlab/numerosity/lode"
)

// openReader returns the override reader when one is set, otherwise a
// reader over the dataset named by the storage flags and config.
func openReader(c *cli.Context) (reader.Reader, error) {
	if r := reader.GetReader(); r != nil {
		return r, nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	dataset, storage := resolveStorage(c, cfg)
	if storage.Backend != lode.BackendMemory && storage.Path == "" {
		return nil, errors.New("--storage-path is required (or set storage.path in config)")
	}
	return reader.Open(c.Context, dataset, storage)
}

func resolveStorage(c *cli.Context, cfg *config.Config) (string, lode.Storage) {
	st := configVal(cfg, func(c *config.Config) config.StorageConfig { return c.Storage })
	return resolveString(c, "dataset", st.Dataset), lode.Storage{
		Backend:      resolveString(c, "storage-backend", st.Backend),
		Path:         resolveString(c, "storage-path", st.Path),
		Region:       resolveString(c, "storage-region", st.Region),
		Endpoint:     resolveString(c, "storage-endpoint", st.Endpoint),
		UsePathStyle: resolveBool(c, "storage-s3-path-style", st.S3PathStyle),
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
