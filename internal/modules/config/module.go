package config

import "go.uber.org/fx"

// Module отдаёт уже загруженный *Config остальным модулям:
// логгер и трейсер поднимаются до fx, им конфиг нужен раньше.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
