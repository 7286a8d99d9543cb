package commands

import (
	"encoding/json"
	"fmt"

	"github.com/xificurk/pyggs/lib/configutil"
	"github.com/xificurk/pyggs/lib/glyph"
	"github.com/xificurk/pyggs/lib/osutil"
	"github.com/xificurk/pyggs/lib/restyutil"
	"github.com/xificurk/pyggs/lib/scrapers/geocaching/core"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// DataDir is where session cookies, the user-agent string and
	// request statistics are persisted between runs.
	DataDir string `json:"data_dir"`
	// Patterns points at the glyph pattern dictionary used for
	// image recognition in `seek --ocr`.
	Patterns string `json:"patterns"`
	// MaxFetchAttempts caps retries of a failing request; 0 keeps
	// retrying until the run is interrupted.
	MaxFetchAttempts int `json:"max_fetch_attempts"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		osutil.Fatal("failed to read config", err)
	}
	return cfg
}

func createClient(cfg Config) *core.Client {
	if *debugHTTP != "" {
		core.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(*debugHTTP))
	}
	return core.NewClient(core.Config{
		Username:         cfg.Username,
		Password:         cfg.Password,
		DataDir:          cfg.DataDir,
		MaxFetchAttempts: cfg.MaxFetchAttempts,
	})
}

func loadDictionary(cfg Config) *glyph.Dictionary {
	dict, err := glyph.LoadDictionary(cfg.Patterns)
	if err != nil {
		osutil.Fatal("failed to load glyph patterns", err)
	}
	return dict
}

func printJSON(value any) {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		osutil.Fatal("failed to encode output", err)
	}
	fmt.Println(string(out))
}
