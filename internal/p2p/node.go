package p2p

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/greenledger/verifier/internal/models"
)

// VerifyProtocolID is the stream protocol for peer verification lookups.
const VerifyProtocolID = "/greenledger/verify/1.0.0"

// Resolver answers verification lookups for the relay protocol. The API
// server backs this with its registry; a token id unknown to this verifier
// yields an error, which is relayed to the requesting peer as a miss.
type Resolver interface {
	FetchMetadata(ctx context.Context, tokenID string) (*models.TokenMetadata, error)
	FetchProvenance(ctx context.Context, tokenID string) ([]models.ProvenanceStep, error)
}

// Node represents a libp2p relay node
type Node struct {
	host   host.Host
	dht    *dht.IpfsDHT
	config NodeConfig
}

// NodeConfig holds P2P node configuration
type NodeConfig struct {
	ListenAddresses []string
	EnableTCP       bool
	EnableQUIC      bool
	BootstrapPeers  []string
}

// NewNode creates a new libp2p relay node
func NewNode(listenAddresses []string, enableTCP, enableQUIC bool) (*Node, error) {
	if len(listenAddresses) == 0 {
		listenAddresses = []string{
			"/ip4/0.0.0.0/tcp/0",
			"/ip4/0.0.0.0/udp/0/quic-v1",
		}
	}

	config := NodeConfig{
		ListenAddresses: listenAddresses,
		EnableTCP:       enableTCP,
		EnableQUIC:      enableQUIC,
	}

	return &Node{
		config: config,
	}, nil
}

// Start starts the relay node
func (n *Node) Start() error {
	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(n.config.ListenAddresses...),
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}
	n.host = h

	ctx := context.Background()
	kadDHT, err := dht.New(ctx, h)
	if err != nil {
		return fmt.Errorf("failed to create DHT: %w", err)
	}
	n.dht = kadDHT

	if err := kadDHT.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	return nil
}

// Stop stops the relay node
func (n *Node) Stop() error {
	if n.dht != nil {
		if err := n.dht.Close(); err != nil {
			return err
		}
	}
	if n.host != nil {
		return n.host.Close()
	}
	return nil
}

// Close is an alias for Stop
func (n *Node) Close() error {
	return n.Stop()
}

// Host returns the libp2p host
func (n *Node) Host() host.Host {
	return n.host
}

// ID returns the peer ID
func (n *Node) ID() peer.ID {
	if n.host == nil {
		return ""
	}
	return n.host.ID()
}

// Addrs returns the multiaddrs the node is listening on
func (n *Node) Addrs() []string {
	if n.host == nil {
		return nil
	}

	var addrs []string
	for _, addr := range n.host.Addrs() {
		addrs = append(addrs, addr.String())
	}
	return addrs
}

// Connect connects to a peer
func (n *Node) Connect(ctx context.Context, peerAddr string) error {
	addrInfo, err := peer.AddrInfoFromString(peerAddr)
	if err != nil {
		return fmt.Errorf("failed to parse peer address: %w", err)
	}

	if err := n.host.Connect(ctx, *addrInfo); err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}

	return nil
}

// lookupResponse is the wire shape of a relay answer.
type lookupResponse struct {
	Found      bool                    `json:"found"`
	Metadata   *models.TokenMetadata   `json:"metadata,omitempty"`
	Provenance []models.ProvenanceStep `json:"provenance,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// ServeLookups registers the verify protocol handler. Each inbound stream
// carries one newline-terminated token id; the answer is a single JSON
// object. Misses are answered, not dropped, so the requester can distinguish
// "peer has no record" from "peer unreachable".
func (n *Node) ServeLookups(resolver Resolver) {
	n.host.SetStreamHandler(protocol.ID(VerifyProtocolID), func(stream network.Stream) {
		defer stream.Close()

		line, err := bufio.NewReader(stream).ReadString('\n')
		if err != nil {
			return
		}
		tokenID := strings.TrimSpace(line)
		if tokenID == "" {
			return
		}

		ctx := context.Background()
		resp := lookupResponse{}

		metadata, err := resolver.FetchMetadata(ctx, tokenID)
		if err != nil {
			resp.Error = err.Error()
			json.NewEncoder(stream).Encode(resp)
			return
		}

		provenance, err := resolver.FetchProvenance(ctx, tokenID)
		if err != nil {
			resp.Error = err.Error()
			json.NewEncoder(stream).Encode(resp)
			return
		}

		resp.Found = true
		resp.Metadata = metadata
		resp.Provenance = provenance
		json.NewEncoder(stream).Encode(resp)
	})
}

// LookupPeer asks another verifier node for its record of a token id.
func (n *Node) LookupPeer(ctx context.Context, peerID string, tokenID string) (*models.TokenMetadata, []models.ProvenanceStep, error) {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid peer ID: %w", err)
	}

	stream, err := n.host.NewStream(ctx, pid, protocol.ID(VerifyProtocolID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	if _, err := stream.Write([]byte(tokenID + "\n")); err != nil {
		return nil, nil, fmt.Errorf("failed to send lookup: %w", err)
	}

	var resp lookupResponse
	if err := json.NewDecoder(stream).Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !resp.Found {
		if resp.Error != "" {
			return nil, nil, fmt.Errorf("peer lookup failed: %s", resp.Error)
		}
		return nil, nil, fmt.Errorf("peer has no record of token")
	}

	return resp.Metadata, resp.Provenance, nil
}
