package utils

import (
	"fmt"
	"strings"
)

// Standardized error messages for consistent user experience across commands

// Toolkit errors
func NewToolkitNotFoundError(binary string, err error) error {
	return fmt.Errorf("OpenSSL not found as %q (install it, or set --openssl, openssl_path in the config file, or CERTIFY_OPENSSL_PATH): %w", binary, err)
}

// Subject and SAN errors
func NewCommonNameRequiredError() error {
	return fmt.Errorf("common name is required (use --cn or set commonName in the job file)")
}

func NewSANParseError(value string, err error) error {
	return fmt.Errorf("invalid SAN %q (use dns:NAME, ip:ADDRESS or email:ADDRESS): %w", value, err)
}

// Conversion errors
func NewUnknownConversionError(kind string, supported []string) error {
	return fmt.Errorf("unsupported conversion: %s (supported: %s)", kind, strings.Join(supported, ", "))
}

func NewConversionError(kind string, err error) error {
	return fmt.Errorf("conversion %s failed: %w", kind, err)
}

// CSR errors
func NewCSRGenerationError(err error) error {
	return fmt.Errorf("failed to generate certificate signing request: %w", err)
}

// Passphrase errors
func NewPassphraseReadError(source string, err error) error {
	return fmt.Errorf("failed to read passphrase from %s: %w", source, err)
}

func NewPassphraseMismatchError() error {
	return fmt.Errorf("passphrases do not match")
}

func NewNonInteractivePassphraseError(flag string) error {
	return fmt.Errorf("a passphrase is required but stdin is not a terminal (use --%s)", flag)
}

// File I/O errors
func NewFileReadError(fileType string, err error) error {
	return fmt.Errorf("failed to read %s file: %w", fileType, err)
}

func NewFileWriteError(fileType string, err error) error {
	return fmt.Errorf("failed to write %s file: %w", fileType, err)
}

// Configuration errors
func NewConfigurationError(message string, err error) error {
	if err != nil {
		return fmt.Errorf("configuration error: %s: %w", message, err)
	}
	return fmt.Errorf("configuration error: %s", message)
}

// Validation errors for specific parameters
func NewParameterValidationError(param, reason string) error {
	return fmt.Errorf("invalid parameter --%s: %s", param, reason)
}

// Batch errors
func NewJobFailedError(name string, err error) error {
	return fmt.Errorf("job %s failed: %w", name, err)
}

func NewBatchError(failed, total int) error {
	return fmt.Errorf("%d of %d jobs failed", failed, total)
}
