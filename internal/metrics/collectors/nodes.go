//go:build linux

// Package collectors polls kernel state that has no change notification
// and publishes it as metrics.
package collectors

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/smazurov/camrig/internal/logging"
	"github.com/smazurov/camrig/internal/metrics"
	"github.com/smazurov/camrig/pkg/linuxav/hotplug"
)

// DefaultSysfsPath lists the video nodes registered with the kernel.
const DefaultSysfsPath = "/sys/class/video4linux"

// Node is one video node as sysfs describes it.
type Node struct {
	Name string // e.g. video0
	Card string // contents of the name attribute
}

// NodeCollector counts registered video nodes, including ones the process
// cannot open.
type NodeCollector struct {
	logger    logging.Logger
	sysfsPath string
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewNodeCollector creates a collector reading sysfsPath every interval.
// An empty path means DefaultSysfsPath.
func NewNodeCollector(sysfsPath string, interval time.Duration) *NodeCollector {
	if sysfsPath == "" {
		sysfsPath = DefaultSysfsPath
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &NodeCollector{
		logger:    logging.GetLogger(logging.ModuleMonitor),
		sysfsPath: sysfsPath,
		interval:  interval,
	}
}

// Start begins collecting.
func (c *NodeCollector) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run()
	return nil
}

// Stop stops the collector and waits for it to exit.
func (c *NodeCollector) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *NodeCollector) run() {
	defer close(c.done)
	c.logger.Debug("Starting video node collection", "path", c.sysfsPath, "interval", c.interval)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *NodeCollector) collect() {
	nodes, err := c.Nodes()
	if err != nil {
		c.logger.Warn("Failed to read video nodes", "path", c.sysfsPath, "error", err)
		return
	}
	metrics.SetVideoNodes(len(nodes))
}

// Nodes lists the video nodes under the sysfs path, sorted by name. A
// missing directory means no nodes.
func (c *NodeCollector) Nodes() ([]Node, error) {
	entries, err := os.ReadDir(c.sysfsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var nodes []Node
	for _, entry := range entries {
		if !hotplug.IsVideoNode(entry.Name()) {
			continue
		}
		node := Node{Name: entry.Name()}
		if data, readErr := os.ReadFile(filepath.Join(c.sysfsPath, entry.Name(), "name")); readErr == nil {
			node.Card = strings.TrimSpace(string(data))
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}
