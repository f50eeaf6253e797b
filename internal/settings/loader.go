package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"botherd/internal/config"
	"botherd/internal/instances"
	"botherd/pkg/logging"

	"sigs.k8s.io/yaml"
)

// ErrNotFound is returned by Load when the document does not exist.
var ErrNotFound = errors.New("settings document not found")

// Load reads and parses the settings document at path.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings path %s: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("failed to read settings %s: %w", abs, err)
	}

	return Parse(abs, data)
}

// Parse parses data as the settings document located at path. JSON is the
// native format; YAML is accepted too.
func Parse(path string, data []byte) (*Document, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, config.ConfigurationError{
			FilePath:  path,
			FileName:  filepath.Base(path),
			Category:  "settings",
			ErrorType: "parse",
			Message:   "settings document is not valid JSON",
			Details:   err.Error(),
			Index:     -1,
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}

	doc := &Document{
		Path:      path,
		Kind:      KindSingle,
		Malformed: config.NewConfigurationErrorCollection(),
		raw:       raw,
	}

	// Presence of the key decides the shape; null counts as an empty list.
	if value, present := raw["Instances"]; present {
		doc.Kind = KindMulti
		list, ok := value.([]interface{})
		if value != nil && !ok {
			return nil, config.ConfigurationError{
				FilePath:    path,
				FileName:    filepath.Base(path),
				Category:    "settings",
				ErrorType:   "validation",
				Message:     "Instances must be an array",
				Index:       -1,
				Suggestions: []string{`Use "Instances": [{"Settings": "...", "Alias": "..."}]`},
			}
		}
		doc.Instances = doc.parseInstances(list)
	}

	doc.Messenger = doc.parseMessenger()

	if doc.Malformed.HasErrors() {
		logging.Warn("Settings", "%s", doc.Malformed.Error())
	}
	return doc, nil
}

func (d *Document) parseInstances(list []interface{}) []Descriptor {
	descriptors := make([]Descriptor, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			d.malformed(i, "entry is not an object")
			continue
		}
		settingsPath, okSettings := stringField(entry, "Settings")
		alias, okAlias := stringField(entry, "Alias")
		switch {
		case !okSettings && !okAlias:
			d.malformed(i, "missing Settings and Alias")
			continue
		case !okSettings:
			d.malformed(i, "missing Settings")
			continue
		case !okAlias:
			d.malformed(i, "missing Alias")
			continue
		}
		descriptors = append(descriptors, Descriptor{Settings: settingsPath, Alias: alias, Index: i})
	}
	return descriptors
}

func (d *Document) parseMessenger() MessengerSettings {
	var m MessengerSettings

	block, ok := d.raw["TelegramMessenger"].(map[string]interface{})
	if !ok {
		return m
	}

	m.Active = d.boolField(block, "Active", "TelegramMessenger.Active")
	m.API, _ = stringField(block, "API")
	m.ChatID = scalarString(block["ChatId"])

	if ping, ok := block["TelegramAutoPing"].(map[string]interface{}); ok {
		m.AutoPing.Active = d.boolField(ping, "Active", "TelegramMessenger.TelegramAutoPing.Active")
		if isSet(ping, "EveryHours") {
			hours, ok := ping["EveryHours"].(float64)
			switch {
			case !ok || hours < 0:
				d.invalid("TelegramMessenger.TelegramAutoPing.EveryHours", "must be a non-negative number")
			case hours > float64(MaxPingHours):
				d.invalid("TelegramMessenger.TelegramAutoPing.EveryHours", fmt.Sprintf("must not exceed %d, using %d", MaxPingHours, MaxPingHours))
				m.AutoPing.EveryHours = MaxPingHours
			default:
				m.AutoPing.EveryHours = int64(hours)
			}
		}
	}
	return m
}

func (d *Document) boolField(block map[string]interface{}, name, key string) bool {
	if !isSet(block, name) {
		return false
	}
	v, ok := block[name].(bool)
	if !ok {
		d.invalid(key, "must be true or false")
		return false
	}
	return v
}

func (d *Document) malformed(index int, message string) {
	d.Malformed.Add(config.ConfigurationError{
		FilePath:  d.Path,
		FileName:  filepath.Base(d.Path),
		Category:  "instances",
		ErrorType: "validation",
		Message:   message,
		Index:     index,
	})
}

func (d *Document) invalid(key, message string) {
	d.Malformed.Add(config.ConfigurationError{
		FilePath:  d.Path,
		FileName:  filepath.Base(d.Path),
		Category:  "settings",
		ErrorType: "validation",
		Message:   key + " " + message,
		Index:     -1,
	})
}

// IsSet reports whether the nested key path exists and holds a non-null value.
//
//	doc.IsSet("TelegramMessenger", "TelegramAutoPing", "EveryHours")
func (d *Document) IsSet(keys ...string) bool {
	if len(keys) == 0 {
		return false
	}
	current := d.raw
	for i, key := range keys {
		if !isSet(current, key) {
			return false
		}
		if i == len(keys)-1 {
			return true
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// Dir returns the directory instance settings paths are relative to.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Targets resolves the instances the document asks for, in document order.
//
// A single-instance document yields itself under MainAlias. In a
// multi-instance document each Settings path is resolved against Dir; when
// two entries resolve to the same identity the first position is kept and
// the later alias wins.
func (d *Document) Targets() []Target {
	if d.Kind == KindSingle {
		return []Target{{Identity: instances.Identity(filepath.Clean(d.Path)), Alias: MainAlias}}
	}

	targets := make([]Target, 0, len(d.Instances))
	seen := make(map[instances.Identity]int, len(d.Instances))
	for _, desc := range d.Instances {
		id := d.Resolve(desc.Settings)
		if pos, dup := seen[id]; dup {
			logging.Warn("Settings", "Instance \"%s\" \"%s\" duplicates \"%s\", keeping one instance", desc.Alias, id, targets[pos].Alias)
			targets[pos].Alias = desc.Alias
			continue
		}
		seen[id] = len(targets)
		targets = append(targets, Target{Identity: id, Alias: desc.Alias})
	}
	return targets
}

// Resolve turns a Settings value into an identity.
func (d *Document) Resolve(settingsPath string) instances.Identity {
	p := settingsPath
	if !filepath.IsAbs(p) {
		p = filepath.Join(d.Dir(), p)
	}
	return instances.Identity(filepath.Clean(p))
}

func isSet(m map[string]interface{}, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// stringField returns a non-blank string value.
func stringField(m map[string]interface{}, key string) (string, bool) {
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// scalarString accepts strings and numbers; chat ids are often written as
// numbers.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
