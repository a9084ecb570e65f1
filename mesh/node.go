// Package mesh implements transport.Transport on a libp2p host. Peers
// exchange JSON chat frames over a dedicated stream protocol; a second
// presence protocol carries join announcements that feed the
// membership-change stream and per-peer wallet metadata.
package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	libp2p "github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/builders-garden/squabble-agent-xmtp/transport"
)

const (
	ProtocolChatV1     = "/squabble/chat/1.0.0"
	ProtocolPresenceV1 = "/squabble/presence/1.0.0"

	DefaultMaxPayloadBytes = 64 * 1024
	DefaultDialTimeout     = 15 * time.Second

	inboundBuffer = 256
)

type Options struct {
	ListenAddrs     []string
	DialTimeout     time.Duration
	MaxPayloadBytes int
	Logger          *slog.Logger
}

func normalizeOptions(opts Options) Options {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.ListenAddrs) == 0 {
		opts.ListenAddrs = []string{
			"/ip4/0.0.0.0/tcp/0",
			"/ip4/0.0.0.0/udp/0/quic-v1",
		}
	}
	return opts
}

type Node struct {
	host   host.Host
	local  Identity
	opts   Options
	logger *slog.Logger

	msgs    chan transport.MessageEnvelope
	members chan transport.Conversation

	mu      sync.RWMutex
	wallets map[string]string
	known   map[string]bool
}

func NewNode(identity Identity, opts Options) (*Node, error) {
	opts = normalizeOptions(opts)

	priv, err := identity.privateKey()
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(opts.ListenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	if h.ID().String() != identity.PeerID {
		_ = h.Close()
		return nil, fmt.Errorf("host identity mismatch: host=%s identity=%s", h.ID().String(), identity.PeerID)
	}

	n := &Node{
		host:    h,
		local:   identity,
		opts:    opts,
		logger:  opts.Logger,
		msgs:    make(chan transport.MessageEnvelope, inboundBuffer),
		members: make(chan transport.Conversation, 16),
		wallets: make(map[string]string),
		known:   make(map[string]bool),
	}

	h.SetStreamHandler(protocol.ID(ProtocolChatV1), n.handleChatStream)
	h.SetStreamHandler(protocol.ID(ProtocolPresenceV1), n.handlePresenceStream)

	return n, nil
}

func (n *Node) Close() error {
	if n == nil || n.host == nil {
		return nil
	}
	return n.host.Close()
}

func (n *Node) PeerID() string {
	if n == nil || n.host == nil {
		return ""
	}
	return n.host.ID().String()
}

func (n *Node) AddrStrings() []string {
	if n == nil || n.host == nil {
		return nil
	}
	p2pComponent, err := ma.NewMultiaddr("/p2p/" + n.host.ID().String())
	if err != nil {
		return nil
	}
	addrs := n.host.Addrs()
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.Encapsulate(p2pComponent).String())
	}
	return out
}

// Connect dials a peer by full multiaddr (including /p2p/<id>) and announces
// our presence so the peer learns our wallet address.
func (n *Node) Connect(ctx context.Context, addr string) error {
	maddr, err := ma.NewMultiaddr(strings.TrimSpace(addr))
	if err != nil {
		return fmt.Errorf("invalid multiaddr %q: %w", addr, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("parse peer addr %q: %w", addr, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, n.opts.DialTimeout)
	defer cancel()
	if err := n.host.Connect(dialCtx, *info); err != nil {
		return fmt.Errorf("connect %s: %w", info.ID, err)
	}
	return n.announcePresence(ctx, info.ID)
}

func (n *Node) announcePresence(ctx context.Context, to peer.ID) error {
	payload := presencePayload{
		Type:          "join",
		WalletAddress: n.local.WalletAddress,
	}
	return n.writeFrame(ctx, to, ProtocolPresenceV1, payload)
}

// StreamMessages returns the combined inbound chat stream. The same channel
// is handed to every caller; the dispatch loop is the only consumer.
func (n *Node) StreamMessages(ctx context.Context) (<-chan transport.MessageEnvelope, error) {
	return n.msgs, nil
}

func (n *Node) StreamMembershipChanges(ctx context.Context) (<-chan transport.Conversation, error) {
	return n.members, nil
}

// GetConversation resolves a conversation id. Conversations map 1:1 to mesh
// peers, so the id must parse as a peer id.
func (n *Node) GetConversation(ctx context.Context, id string) (transport.Conversation, error) {
	pid, err := peer.Decode(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("unknown conversation %q: %w", id, err)
	}
	return &conversation{node: n, peerID: pid}, nil
}

func (n *Node) ResolveWalletAddress(ctx context.Context, senderID string) (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.wallets[strings.TrimSpace(senderID)], nil
}

func (n *Node) handleChatStream(s network.Stream) {
	defer func() { _ = s.Close() }()
	remote := s.Conn().RemotePeer().String()

	raw, truncated, err := readAllLimited(s, n.opts.MaxPayloadBytes)
	if err != nil {
		n.logger.Warn("mesh_chat_read_error", "peer_id", remote, "error", err.Error())
		return
	}
	if truncated {
		n.logger.Warn("mesh_chat_payload_too_large", "peer_id", remote)
		return
	}

	payload, err := parseChatPayload(raw)
	if err != nil {
		n.logger.Warn("mesh_chat_payload_error", "peer_id", remote, "error", err.Error())
		return
	}

	env := payload.envelope(remote, time.Now().UTC())
	select {
	case n.msgs <- env:
	default:
		// Inbound buffer full; the dispatch loop is stalled. Dropping is
		// preferable to blocking the stream handler.
		n.logger.Warn("mesh_inbound_dropped", "peer_id", remote, "message_id", env.ID)
	}
}

func (n *Node) handlePresenceStream(s network.Stream) {
	defer func() { _ = s.Close() }()
	remote := s.Conn().RemotePeer().String()

	raw, truncated, err := readAllLimited(s, n.opts.MaxPayloadBytes)
	if err != nil || truncated {
		n.logger.Warn("mesh_presence_read_error", "peer_id", remote)
		return
	}

	var payload presencePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.logger.Warn("mesh_presence_payload_error", "peer_id", remote, "error", err.Error())
		return
	}
	if strings.TrimSpace(payload.Type) != "join" {
		return
	}

	convID := strings.TrimSpace(payload.ConversationID)
	if convID == "" {
		convID = remote
	}

	n.mu.Lock()
	if addr := strings.TrimSpace(payload.WalletAddress); addr != "" {
		n.wallets[remote] = addr
	}
	seen := n.known[convID]
	n.known[convID] = true
	n.mu.Unlock()
	if seen {
		return
	}

	conv, err := n.GetConversation(context.Background(), convID)
	if err != nil {
		n.logger.Warn("mesh_presence_conversation_error", "conversation_id", convID, "error", err.Error())
		return
	}
	select {
	case n.members <- conv:
		n.logger.Info("mesh_membership_join", "conversation_id", convID, "peer_id", remote)
	default:
		n.logger.Warn("mesh_membership_dropped", "conversation_id", convID)
	}
}

func (n *Node) writeFrame(ctx context.Context, to peer.ID, proto string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", proto, err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, n.opts.DialTimeout)
	defer cancel()
	s, err := n.host.NewStream(streamCtx, to, protocol.ID(proto))
	if err != nil {
		return fmt.Errorf("open stream %s to %s: %w", proto, to, err)
	}
	defer func() { _ = s.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetWriteDeadline(deadline)
	}
	if _, err := s.Write(b); err != nil {
		return fmt.Errorf("write %s frame to %s: %w", proto, to, err)
	}
	return s.CloseWrite()
}

func readAllLimited(reader io.Reader, maxBytes int) ([]byte, bool, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	limited := io.LimitReader(reader, int64(maxBytes)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if len(data) > maxBytes {
		return data, true, nil
	}
	return data, false, nil
}

type conversation struct {
	node   *Node
	peerID peer.ID
}

func (c *conversation) ID() string {
	return c.peerID.String()
}

func (c *conversation) Send(ctx context.Context, text string) (string, error) {
	messageID := uuid.NewString()
	// ConversationID stays empty on direct sends; the receiving side keys
	// the conversation by the stream's remote peer.
	payload := chatPayload{
		MessageID: messageID,
		SenderID:  c.node.local.PeerID,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
		Content:   mustJSONString(text),
	}
	if err := c.node.writeFrame(ctx, c.peerID, ProtocolChatV1, payload); err != nil {
		return "", err
	}
	return messageID, nil
}

func mustJSONString(s string) json.RawMessage {
	b, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}
