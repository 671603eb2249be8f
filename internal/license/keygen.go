// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

// Settings identifies the Keygen product. An empty Account disables the gate.
type Settings struct {
	Account string
	Product string
	Token   string
	License string
}

func (s Settings) Enabled() bool {
	return s.Account != ""
}

// Validator validates a license key.
type Validator interface {
	ValidateLicense(ctx context.Context, licenseKey string) error
}

// KeygenValidator handles license validation using Keygen.sh
type KeygenValidator struct {
	logger      *zap.Logger
	fingerprint func() (string, error)
}

// NewKeygenValidator creates a new Keygen license validator
func NewKeygenValidator(s Settings, logger *zap.Logger) *KeygenValidator {
	// Configure global Keygen settings
	keygen.Account = s.Account
	keygen.Product = s.Product
	keygen.Token = s.Token

	return &KeygenValidator{
		logger:      logger.Named("license"),
		fingerprint: machineFingerprint,
	}
}

// Gate validates the license when the gate is enabled and is a no-op otherwise.
func Gate(ctx context.Context, s Settings, v Validator, logger *zap.Logger) error {
	if !s.Enabled() {
		logger.Debug("License gate disabled")
		return nil
	}
	if s.License == "" {
		return errors.New("missing license key")
	}
	return v.ValidateLicense(ctx, s.License)
}

// ValidateLicense validates a license key with Keygen
func (kv *KeygenValidator) ValidateLicense(ctx context.Context, licenseKey string) error {
	kv.logger.Info("Validating license", zap.String("key", maskKey(licenseKey)))

	fingerprint, err := kv.fingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	keygen.LicenseKey = licenseKey

	license, err := keygen.Validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		kv.logger.Info("License not activated, attempting activation")
		machine, activateErr := license.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		kv.logger.Info("License activated",
			zap.String("machine_id", machine.ID),
			zap.String("fingerprint", fingerprint),
		)

	case errors.Is(err, keygen.ErrLicenseExpired):
		return fmt.Errorf("license has expired")

	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if license == nil {
		return fmt.Errorf("license not found")
	}

	kv.logger.Info("License validated", zap.String("license_id", license.ID))
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..."
}

// machineFingerprint hashes the hostname, the first active MAC address and the OS.
func machineFingerprint() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var mac string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			mac = iface.HardwareAddr.String()
			break
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if mac == "" && hostname == "unknown" {
		return "", fmt.Errorf("no network interfaces found")
	}

	return fingerprintOf(hostname, mac, runtime.GOOS), nil
}

func fingerprintOf(hostname, mac, goos string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, goos)))
	return fmt.Sprintf("%x", hash)
}
