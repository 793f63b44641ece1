package sandbox

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// hostKeyFilename is the Controller's own identity key, generated once
// per appRoot. The teacher generated the equivalent key pair once per
// app root and cloned it into each sandbox's bind-mounted hostkeys
// directory so the container's sshd would present it as its own host
// identity; this module has no sshd, so Controller.Create clones the
// same pair into every container's /etc/ipybox/hostkey instead, giving
// each sandbox a stable, verifiable identity tied to the Controller
// that created it.
const hostKeyFilename = "ipybox_host_ed25519_key"

func genHostKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

func encodePrivateKeyToPEM(privateKey ed25519.PrivateKey) []byte {
	pkBytes, err := ssh.MarshalPrivateKey(privateKey, "ipybox host key")
	if err != nil {
		panic(fmt.Sprintf("failed to marshal private key: %v", err))
	}
	return pem.EncodeToMemory(pkBytes)
}

// ensureHostSigner loads the Controller's identity key from appRoot as an
// ssh.Signer, generating and persisting a fresh ed25519 key pair if one
// isn't already there.
func ensureHostSigner(appRoot string) (ssh.Signer, error) {
	idPath := filepath.Join(appRoot, hostKeyFilename)

	if pemBytes, err := os.ReadFile(idPath); err == nil {
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse host key %s: %w", idPath, err)
		}
		return signer, nil
	}

	_, privateKey, err := genHostKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate host key pair: %w", err)
	}

	pemBytes := encodePrivateKeyToPEM(privateKey)
	if err := os.WriteFile(idPath, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write host key %s: %w", idPath, err)
	}

	sshPublicKey, err := ssh.NewPublicKey(privateKey.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("convert host public key: %w", err)
	}
	if err := os.WriteFile(idPath+".pub", ssh.MarshalAuthorizedKey(sshPublicKey), 0o600); err != nil {
		return nil, fmt.Errorf("write host public key %s.pub: %w", idPath, err)
	}

	return ssh.ParsePrivateKey(pemBytes)
}

// cloneHostKeyPair copies the Controller's persisted host key pair from
// appRoot into dir, mirroring the teacher's cloneHostKeyPair: each
// sandbox gets its own copy to bind-mount in, rather than mounting
// appRoot itself, so the container never sees the Controller's other
// state.
func cloneHostKeyPair(appRoot, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create hostkey clone dir %s: %w", dir, err)
	}
	idPath := filepath.Join(appRoot, hostKeyFilename)
	for _, name := range []string{hostKeyFilename, hostKeyFilename + ".pub"} {
		data, err := os.ReadFile(filepath.Join(appRoot, name))
		if err != nil {
			return fmt.Errorf("read host key file %s: %w", idPath, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return fmt.Errorf("write cloned host key file %s: %w", filepath.Join(dir, name), err)
		}
	}
	return nil
}
