package petition

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

// RealmDescriptor is one entry of the static realm registry file.
type RealmDescriptor struct {
	Label       string `yaml:"label"`
	DisplayName string `yaml:"display_name"`
}

// realmFile is the on-disk shape of realms.yaml.
type realmFile struct {
	DefaultRealm string            `yaml:"default_realm"`
	Realms       []RealmDescriptor `yaml:"realms"`
}

// StaticRealmRegistry is a RealmResolver backed by a YAML descriptor file,
// the teacher's pattern for static configuration data it does not want to
// hand-roll a parser for (it already depends on yaml.v3 for its own
// descriptor files).
type StaticRealmRegistry struct {
	defaultRealm string
	known        map[string]bool
}

// LoadRealmRegistry reads and parses a realms.yaml file at path.
func LoadRealmRegistry(path string) (*StaticRealmRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindConfiguration, "failed to read realm registry file", err)
	}
	var f realmFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, petitionerr.Wrap(petitionerr.KindConfiguration, "failed to parse realm registry file", err)
	}
	if f.DefaultRealm == "" {
		return nil, petitionerr.New(petitionerr.KindConfiguration, "realm registry file has no default_realm")
	}
	known := make(map[string]bool, len(f.Realms)+1)
	known[f.DefaultRealm] = true
	for _, r := range f.Realms {
		known[r.Label] = true
	}
	return &StaticRealmRegistry{defaultRealm: f.DefaultRealm, known: known}, nil
}

// NewStaticRealmRegistry builds a registry directly from a default realm
// and the set of additional known realm labels, for tests and for
// deployments that don't use a YAML file.
func NewStaticRealmRegistry(defaultRealm string, labels ...string) *StaticRealmRegistry {
	known := make(map[string]bool, len(labels)+1)
	known[defaultRealm] = true
	for _, l := range labels {
		known[l] = true
	}
	return &StaticRealmRegistry{defaultRealm: defaultRealm, known: known}
}

// Resolve implements RealmResolver.
func (r *StaticRealmRegistry) Resolve(label string) (string, error) {
	if label == "" {
		return r.defaultRealm, nil
	}
	if !r.known[label] {
		return "", petitionerr.New(petitionerr.KindValidation, "invalid realm: "+label)
	}
	return label, nil
}
