package catalog

import (
	"fmt"
	"os"
	"sync"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/log"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// defaultNodeID is the synthetic node a new catalog starts with, and the
// one installed whenever a loaded catalog document holds no nodes.
const defaultNodeID = "default_node"

func defaultNode() *types.Node {
	return &types.Node{
		ID:            defaultNodeID,
		AvailableCPUs: []string{"0", "1", "2", "3"},
		MaxMemoryMB:   4096,
		Architecture:  "unknown",
	}
}

// nodeDoc mirrors one entry under the top-level "nodes" key of the catalog
// source document. Unknown keys are ignored by yaml.Unmarshal by default.
type nodeDoc struct {
	Name          string   `yaml:"name"`
	AvailableCPUs []string `yaml:"available_cpus"`
	MaxMemoryMB   int      `yaml:"max_memory_mb"`
	Architecture  string   `yaml:"architecture"`
	Location      string   `yaml:"location"`
	Description   string   `yaml:"description"`
}

type catalogDoc struct {
	Nodes map[string]nodeDoc `yaml:"nodes"`
}

// Catalog is the node registry: a read-after-load collection of
// Nodes, replaced as a whole at Load time; loads and reads all take the
// same mutex.
type Catalog struct {
	mu     sync.Mutex
	nodes  map[string]*types.Node
	logger zerolog.Logger
}

// New returns an empty catalog. Get/All/AvailableCPUs are safe to call
// before Load; they behave as if the catalog document were empty.
func New() *Catalog {
	c := &Catalog{
		nodes:  map[string]*types.Node{defaultNodeID: defaultNode()},
		logger: log.WithComponent("catalog"),
	}
	return c
}

// Load parses the catalog source at path and replaces the catalog's node
// set on success. On a read or parse failure the previous node set is
// left intact. A document with no nodes replaces the node set with the
// single synthetic default node.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error().Err(err).Str("path", path).Msg("failed to read node catalog, preserving previous state")
		return orcherr.Wrap(orcherr.Config, "catalog.Load", err)
	}
	return c.LoadBytes(data)
}

// LoadBytes parses raw catalog document bytes, per the same replace-on-
// success rule as Load.
func (c *Catalog) LoadBytes(data []byte) error {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		c.logger.Error().Err(err).Msg("malformed node catalog document, preserving previous state")
		return orcherr.Wrap(orcherr.Config, "catalog.LoadBytes", err)
	}

	nodes := make(map[string]*types.Node, len(doc.Nodes))
	for id, nd := range doc.Nodes {
		nodes[id] = &types.Node{
			ID:            id,
			AvailableCPUs: nd.AvailableCPUs,
			MaxMemoryMB:   nd.MaxMemoryMB,
			Architecture:  nd.Architecture,
			Location:      nd.Location,
			Description:   nd.Description,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(nodes) == 0 {
		c.nodes = map[string]*types.Node{defaultNodeID: defaultNode()}
		c.logger.Warn().Msg("node catalog document has no nodes, installed synthetic default_node")
		return nil
	}

	c.nodes = nodes
	c.logger.Info().Int("node_count", len(nodes)).Msg("node catalog loaded")
	return nil
}

// Get returns the node with the given id, or (nil, false) if absent.
func (c *Catalog) Get(id string) (*types.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	return n, ok
}

// All returns every node currently in the catalog, in no particular order.
func (c *Catalog) All() []*types.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}

// AvailableCPUs returns the CPU list of the named node. For an absent node
// it deliberately returns the default node's CPU list rather than an
// empty one, as a compatibility fallback.
func (c *Catalog) AvailableCPUs(id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.AvailableCPUs
	}
	return defaultNode().AvailableCPUs
}

// Count returns the number of nodes currently loaded.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Validate reports an error if id is not a known node. Helper for callers
// that need a hard membership check instead of the AvailableCPUs fallback.
func (c *Catalog) Validate(id string) error {
	if _, ok := c.Get(id); !ok {
		return orcherr.Wrap(orcherr.Config, "catalog.Validate", fmt.Errorf("unknown node %q", id))
	}
	return nil
}
