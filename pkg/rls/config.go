package rls

// Config holds policy engine settings read from the environment.
// A manifest file, when given, overrides Mode, Roles and Force.
type Config struct {
	Mode     string   `env:"RLS_MODE" envDefault:"unrestricted"`
	Roles    []string `env:"RLS_ROLES" envSeparator:","`
	Force    bool     `env:"RLS_FORCE_ROW_SECURITY" envDefault:"true"`
	Schemas  []string `env:"RLS_SCHEMAS" envSeparator:"," envDefault:"public"`
	Manifest string   `env:"RLS_MANIFEST"`
}

// EngineOptions converts the configuration into engine options.
func (c Config) EngineOptions() ([]EngineOption, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	opts := []EngineOption{WithMode(mode)}
	if len(c.Roles) > 0 {
		opts = append(opts, WithRoles(c.Roles...))
	}
	if !c.Force {
		opts = append(opts, WithoutForce())
	}
	return opts, nil
}
