package config

// Direction is a source/target language pair a stream translates between.
type Direction struct {
	Name       string
	Source     string // ISO 639-1 code, used for speech recognition
	Target     string // ISO 639-1 code, used for speech synthesis
	SourceName string // Human readable, used in translation prompts
	TargetName string
}

var directions = map[string]Direction{
	"ru-en": {Name: "ru-en", Source: "ru", Target: "en", SourceName: "Russian", TargetName: "English"},
	"en-ru": {Name: "en-ru", Source: "en", Target: "ru", SourceName: "English", TargetName: "Russian"},
}

// LookupDirection returns the named direction.
func LookupDirection(name string) (Direction, bool) {
	d, ok := directions[name]
	return d, ok
}

// ResolveDirection returns the named direction, falling back to the configured default.
func (c *Config) ResolveDirection(name string) Direction {
	if d, ok := directions[name]; ok {
		return d
	}
	return directions[c.DefaultDirection]
}
