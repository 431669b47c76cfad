package dag

import (
	"sort"

	"segweaver/internal/core"
)

var hasher = core.NewFingerprinter()

// definitionHash hashes the declarative fields of n: name, params, the set of
// dependency names and, for a source, its content digest.
//
// Dependencies are hashed as inputs with an empty digest; the source digest
// is hashed as an input with an empty name, which no declared node can have.
func definitionHash(n *Node) core.Fingerprint {
	deps := make([]core.InputDigest, 0, len(n.Deps)+1)
	for _, d := range n.Deps {
		deps = append(deps, core.InputDigest{Name: d})
	}
	if n.IsSource() {
		deps = append(deps, core.InputDigest{Digest: n.sourceDigest})
	}
	return hasher.Compute(core.FingerprintInput{Node: n.Name, Params: n.Params, Inputs: deps})
}

// graphHash hashes every (name, definition hash) pair. Definition hashes
// cover dependency names, so the edge structure is included.
func graphHash(nodes []*TaskNode) GraphHash {
	defs := make([]core.InputDigest, len(nodes))
	for i, n := range nodes {
		defs[i] = core.InputDigest{Name: n.Name, Digest: string(n.DefinitionHash)}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return GraphHash(hasher.Compute(core.FingerprintInput{Node: "graph", Inputs: defs}))
}
