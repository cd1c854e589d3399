// Package migration applies schema-version upgrade steps to a raw
// persisted snapshot before it is unmarshalled into the current
// state.Snapshot shape. Grounded on original_source's migration module
// (a chain-of-steps pattern); there is no teacher equivalent, so the
// implementation follows the teacher's general Go error-handling idiom
// (explicit error returns, no panics) rather than any specific file.
package migration

import "fmt"

// Step upgrades a raw JSON document from one schema version to the
// next. in is the decoded document at FromVersion; Step returns the
// document re-shaped for ToVersion.
type Step struct {
	FromVersion int
	ToVersion   int
	Apply       func(in map[string]any) (map[string]any, error)
}

// Chain runs a registered sequence of Steps to bring a document up to
// the target version, detecting gaps (a document whose version has no
// registered step) rather than silently skipping it.
type Chain struct {
	steps map[int]Step
}

func NewChain() *Chain {
	return &Chain{steps: make(map[int]Step)}
}

// Register adds one upgrade step. Panics on a duplicate FromVersion
// registration, since that is a programming error caught at startup,
// not a runtime condition.
func (c *Chain) Register(step Step) {
	if _, exists := c.steps[step.FromVersion]; exists {
		panic(fmt.Sprintf("migration: duplicate step registered for version %d", step.FromVersion))
	}
	c.steps[step.FromVersion] = step
}

// Apply walks the chain from fromVersion to targetVersion, applying
// each registered step in turn. Returns an error identifying the exact
// version gap if no step exists to advance past some intermediate
// version before reaching targetVersion.
func (c *Chain) Apply(doc map[string]any, fromVersion, targetVersion int) (map[string]any, error) {
	version := fromVersion
	for version < targetVersion {
		step, ok := c.steps[version]
		if !ok {
			return nil, fmt.Errorf("migration: no upgrade step registered from schema version %d (target %d)", version, targetVersion)
		}
		upgraded, err := step.Apply(doc)
		if err != nil {
			return nil, fmt.Errorf("migration: step %d->%d failed: %w", step.FromVersion, step.ToVersion, err)
		}
		doc = upgraded
		version = step.ToVersion
	}
	return doc, nil
}
