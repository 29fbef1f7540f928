package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/caarlos0/go-shellwords"
)

// Credential sources accepted by NewCredential.
const (
	CredentialCLI             = "cli"
	CredentialDefault         = "default"
	CredentialManagedIdentity = "managed-identity"
	CredentialCommand         = "command"
)

// CredentialKinds lists the accepted credential sources.
var CredentialKinds = []string{CredentialCLI, CredentialDefault, CredentialManagedIdentity, CredentialCommand}

// commandTokenLifetime is assumed for tokens printed as plain text.
const commandTokenLifetime = 10 * time.Minute

// CredentialOptions selects and configures a credential source.
type CredentialOptions struct {
	// Kind is one of CredentialKinds. Empty means CredentialCLI.
	Kind string
	// TenantID restricts the CLI credential to a tenant.
	TenantID string
	// ClientID selects a user-assigned managed identity.
	ClientID string
	// Command prints a bearer token, either as plain text or as the JSON
	// document of `az account get-access-token`.
	Command string
}

// NewCredential returns the token credential described by opts.
func NewCredential(opts CredentialOptions) (azcore.TokenCredential, error) {
	switch opts.Kind {
	case "", CredentialCLI:
		cred, err := azidentity.NewAzureCLICredential(&azidentity.AzureCLICredentialOptions{
			TenantID: opts.TenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("azure cli credential: %w", err)
		}
		return cred, nil
	case CredentialDefault:
		cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: opts.TenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("default azure credential: %w", err)
		}
		return cred, nil
	case CredentialManagedIdentity:
		miOpts := &azidentity.ManagedIdentityCredentialOptions{}
		if opts.ClientID != "" {
			miOpts.ID = azidentity.ClientID(opts.ClientID)
		}
		cred, err := azidentity.NewManagedIdentityCredential(miOpts)
		if err != nil {
			return nil, fmt.Errorf("managed identity credential: %w", err)
		}
		return cred, nil
	case CredentialCommand:
		return NewCommandCredential(opts.Command)
	default:
		return nil, fmt.Errorf("unknown credential kind %q", opts.Kind)
	}
}

// CommandCredential obtains tokens by running a local command.
type CommandCredential struct {
	args []string
	now  func() time.Time
}

// NewCommandCredential parses command with shell quoting rules.
func NewCommandCredential(command string) (*CommandCredential, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse token command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("token command is empty")
	}
	return &CommandCredential{args: args, now: time.Now}, nil
}

type cliAccessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresOn   int64  `json:"expires_on"`
}

// GetToken runs the command and parses its output.
func (c *CommandCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	// #nosec G204 -- the token command is explicitly configured by the local user.
	out, err := exec.CommandContext(ctx, c.args[0], c.args[1:]...).Output()
	if err != nil {
		return azcore.AccessToken{}, fmt.Errorf("run token command: %w", err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return azcore.AccessToken{}, errors.New("token command printed nothing")
	}

	var doc cliAccessToken
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return azcore.AccessToken{}, fmt.Errorf("parse token command output: %w", err)
		}
		if doc.AccessToken == "" {
			return azcore.AccessToken{}, errors.New("token command output has no accessToken")
		}
		expires := c.now().Add(commandTokenLifetime)
		if doc.ExpiresOn > 0 {
			expires = time.Unix(doc.ExpiresOn, 0)
		}
		return azcore.AccessToken{Token: doc.AccessToken, ExpiresOn: expires}, nil
	}
	return azcore.AccessToken{Token: text, ExpiresOn: c.now().Add(commandTokenLifetime)}, nil
}
