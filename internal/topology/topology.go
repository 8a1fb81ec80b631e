// ABOUTME: Generator for Paxos cluster configurations: replicas, clients, and a controller.
// ABOUTME: Emits the agent table (type, box, attrs, routes) as JSON or YAML.

// Package topology generates agent configuration files for Paxos test
// clusters.
package topology

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ReplicaBaseID   = 1
	ReplicaBasePort = 5000
	ClientBaseID    = 100
	ClientBasePort  = 8000
	ControllerID    = 999
	ControllerPort  = 9999

	// Logical ports agents listen on, per sender.
	ReplicaInPort    = 1
	ClientInPort     = 2
	ControllerInPort = 9
)

// Client modes.
const (
	ModeScript = "script"
	ModeManual = "manual"
)

// Kind is an agent type.
type Kind string

const (
	KindReplica    Kind = "paxos_replica"
	KindClient     Kind = "paxos_client"
	KindController Kind = "paxos_controller"
)

// ErrInvalidParams is returned for parameters that cannot describe a cluster.
var ErrInvalidParams = errors.New("invalid topology parameters")

// Params describes the cluster to generate.
type Params struct {
	// F is the number of replica failures to tolerate.
	F       int
	Clients int
	Mode    string
}

// Attrs are the per-agent attributes. Empty fields are omitted.
type Attrs struct {
	MyID     int    `json:"myid,omitempty" yaml:"myid,omitempty"`
	Replicas []int  `json:"replicas,omitempty" yaml:"replicas,omitempty"`
	Clients  []int  `json:"clients,omitempty" yaml:"clients,omitempty"`
	Output   string `json:"output,omitempty" yaml:"output,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Agent is one entry of the configuration.
type Agent struct {
	ID    int    `json:"-" yaml:"-"`
	Type  Kind   `json:"type" yaml:"type"`
	Box   string `json:"box" yaml:"box"`
	Attrs Attrs  `json:"attrs" yaml:"attrs"`
	// Routes maps a destination id to {destination id: logical port}.
	Routes map[string]map[string]int `json:"routes" yaml:"routes"`
}

func newAgent(id int, kind Kind, port int) *Agent {
	return &Agent{
		ID:     id,
		Type:   kind,
		Box:    "127.0.0.1:" + strconv.Itoa(port),
		Routes: make(map[string]map[string]int),
	}
}

func (a *Agent) route(dest, port int) {
	key := strconv.Itoa(dest)
	a.Routes[key] = map[string]int{key: port}
}

// Topology is a generated cluster in generation order.
type Topology struct {
	Agents []*Agent
}

// Validate checks p.
func (p Params) Validate() error {
	if p.F <= 0 {
		return fmt.Errorf("%w: f must be positive, got %d", ErrInvalidParams, p.F)
	}
	if p.Clients <= 0 {
		return fmt.Errorf("%w: clients must be positive, got %d", ErrInvalidParams, p.Clients)
	}
	if p.Mode != ModeScript && p.Mode != ModeManual {
		return fmt.Errorf("%w: mode must be %s or %s, got %q", ErrInvalidParams, ModeScript, ModeManual, p.Mode)
	}
	return nil
}

// GeneratePaxos builds a cluster of 2f+1 replicas, the requested clients,
// and one controller.
func GeneratePaxos(p Params) (*Topology, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	replicas := make([]int, 2*p.F+1)
	for i := range replicas {
		replicas[i] = ReplicaBaseID + i
	}
	clients := make([]int, p.Clients)
	for i := range clients {
		clients[i] = ClientBaseID + i
	}

	t := &Topology{}
	for _, id := range replicas {
		a := newAgent(id, KindReplica, ReplicaBasePort+id)
		a.Attrs = Attrs{
			MyID:     id,
			Replicas: replicas,
			Clients:  clients,
			Output:   fmt.Sprintf("tmp/replica_%d.output", id),
		}
		for _, dest := range replicas {
			a.route(dest, ReplicaInPort)
		}
		for _, dest := range clients {
			a.route(dest, ReplicaInPort)
		}
		t.Agents = append(t.Agents, a)
	}
	for _, id := range clients {
		a := newAgent(id, KindClient, ClientBasePort+id)
		a.Attrs = Attrs{MyID: id, Replicas: replicas, Mode: p.Mode}
		for _, dest := range replicas {
			a.route(dest, ClientInPort)
		}
		t.Agents = append(t.Agents, a)
	}

	ctl := newAgent(ControllerID, KindController, ControllerPort)
	ctl.Attrs = Attrs{Replicas: replicas, Clients: clients}
	for _, dest := range replicas {
		ctl.route(dest, ControllerInPort)
	}
	for _, dest := range clients {
		ctl.route(dest, ControllerInPort)
	}
	t.Agents = append(t.Agents, ctl)

	return t, nil
}

// Table returns the agents keyed by their decimal id, the shape agents load.
func (t *Topology) Table() map[string]*Agent {
	table := make(map[string]*Agent, len(t.Agents))
	for _, a := range t.Agents {
		table[strconv.Itoa(a.ID)] = a
	}
	return table
}

// Encode writes the table to w as "json" or "yaml".
func (t *Topology) Encode(w io.Writer, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "\t")
		return enc.Encode(t.Table())
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t.Table()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
