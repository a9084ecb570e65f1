package mesh

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	ic "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/builders-garden/squabble-agent-xmtp/internal/fsstore"
)

// Identity is the bot's stable mesh identity: an ed25519 keypair and the
// libp2p peer id derived from it. The peer id doubles as the bot's sender
// identity on the message stream.
type Identity struct {
	PeerID        string    `json:"peer_id"`
	PubEd25519    string    `json:"pub_ed25519"`
	PrivEd25519   string    `json:"priv_ed25519"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func GenerateIdentity(now time.Time) (Identity, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()

	priv, pub, err := ic.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return Identity{}, fmt.Errorf("generate ed25519 keypair: %w", err)
	}

	peerID, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return Identity{}, fmt.Errorf("derive peer id from public key: %w", err)
	}

	pubRaw, err := pub.Raw()
	if err != nil {
		return Identity{}, fmt.Errorf("export public key bytes: %w", err)
	}
	privRaw, err := priv.Raw()
	if err != nil {
		return Identity{}, fmt.Errorf("export private key bytes: %w", err)
	}

	return Identity{
		PeerID:      peerID.String(),
		PubEd25519:  base64.RawURLEncoding.EncodeToString(pubRaw),
		PrivEd25519: base64.RawURLEncoding.EncodeToString(privRaw),
		CreatedAt:   now,
	}, nil
}

func (id Identity) privateKey() (ic.PrivKey, error) {
	privRaw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(id.PrivEd25519))
	if err != nil {
		return nil, fmt.Errorf("priv_ed25519 decode failed: %w", err)
	}
	priv, err := ic.UnmarshalEd25519PrivateKey(privRaw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal ed25519 private key: %w", err)
	}
	return priv, nil
}

func LoadIdentity(path string) (Identity, bool, error) {
	var id Identity
	ok, err := fsstore.ReadJSON(path, &id)
	if err != nil || !ok {
		return Identity{}, false, err
	}
	if strings.TrimSpace(id.PeerID) == "" || strings.TrimSpace(id.PrivEd25519) == "" {
		return Identity{}, false, fmt.Errorf("identity file %s is incomplete", path)
	}
	return id, true, nil
}

func SaveIdentity(path string, id Identity) error {
	return fsstore.WriteJSONAtomic(path, id)
}
