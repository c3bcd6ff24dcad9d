// Package config loads configuration structs from environment variables.
//
// Fields are described with github.com/caarlos0/env/v11 tags; a .env file in
// the working directory is read once through github.com/joho/godotenv when
// present, and LoadEnvFiles reads explicitly named files.
//
//	type Config struct {
//		Postgres pg.Config
//		Redis    redis.Config
//	}
//
//	cfg, err := config.Parse[Config]()
//
// Parse always reads the current environment. Load caches the parsed value
// per type, for packages that look their configuration up more than once.
package config
