package interpolate

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Node interpolates every string scalar value under n in place. Mapping keys
// and comments are left alone. Substituted scalars lose their tag and quoting
// so "5432" can decode into an int field. A nil lookup reads the process
// environment.
func Node(n *yaml.Node, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return walkScalars(n, lookup)
}

func walkScalars(n *yaml.Node, lookup LookupFunc) error {
	if n.Kind == yaml.ScalarNode {
		if n.ShortTag() != "!!str" || !HasEnv(n.Value) {
			return nil
		}
		v, err := EnvWith(n.Value, lookup)
		if err != nil {
			return err
		}
		n.Value = v
		n.Tag = ""
		n.Style = 0
		return nil
	}

	for i, child := range n.Content {
		// skip mapping keys
		if n.Kind == yaml.MappingNode && i%2 == 0 {
			continue
		}
		if err := walkScalars(child, lookup); err != nil {
			return err
		}
	}
	return nil
}
