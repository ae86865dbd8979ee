package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/encodeous/nylon/internal/identity"
)

// LoadNodeConfig reads and unmarshals node.json at path.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading node config: %w", err)
	}
	var nc NodeConfig
	if err := json.Unmarshal(data, &nc); err != nil {
		return nil, fmt.Errorf("config: decoding node config: %w", err)
	}
	if err := nc.Validate(); err != nil {
		return nil, err
	}
	return &nc, nil
}

// LoadCentralConfig reads and unmarshals net.json at path. It does not
// validate the embedded signature; callers must call ValidateCentralConfig
// before trusting the result.
func LoadCentralConfig(path string) (*identity.SignedClaim[CentralConfig], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading central config: %w", err)
	}
	var sc identity.SignedClaim[CentralConfig]
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("config: decoding central config: %w", err)
	}
	return &sc, nil
}

// ValidateCentralConfig checks that sc is currently active and that its
// signature verifies under the root CA recorded *inside* the claim. This
// is the mechanism by which "the CA pubkey must equal the outer signer"
// is enforced: Validate checks the signature against exactly the entity
// the claim itself names as root, so a claim signed by any other key
// fails here regardless of what RootCA field it carries.
func ValidateCentralConfig(sc identity.SignedClaim[CentralConfig]) error {
	if err := sc.Validate(sc.Claim.Data.RootCA); err != nil {
		return fmt.Errorf("config: central config failed root validation: %w", err)
	}
	return nil
}

// LoadRootSecret reads root.json (the network root's EntitySecret). It is
// never deployed to ordinary nodes; only `net init`/`net sign` read it.
func LoadRootSecret(path string) (identity.EntitySecret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return identity.EntitySecret{}, fmt.Errorf("config: reading root secret: %w", err)
	}
	var s identity.EntitySecret
	if err := json.Unmarshal(data, &s); err != nil {
		return identity.EntitySecret{}, fmt.Errorf("config: decoding root secret: %w", err)
	}
	return s, nil
}
