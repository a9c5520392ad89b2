//go:build !(rp2040 && (challenger_rp2040 || ninafw || comboat_fw)) && !(linux && !tinygo)

package platform

import (
	"os"

	"proxnode-go/errcode"
	"proxnode-go/services/config"
	"proxnode-go/x/logx"
)

const Name = "none"

func NewLogger(level string) (logx.Logger, func(), error) {
	return logx.NewPrinter(os.Stderr, logx.ParseLevel(level)), func() {}, nil
}

func LoadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func Open(*config.Config, logx.Logger) (*Board, error) {
	return nil, &errcode.E{C: errcode.Unsupported, Op: "platform.open", Msg: "no drivers for this target"}
}
