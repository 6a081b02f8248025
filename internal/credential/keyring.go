package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "email-to-remarkable"

// KeyDeviceToken is the keyring entry holding the reMarkable device
// registration token. It is consulted only when neither the token
// environment variable nor the token file yields a value.
const KeyDeviceToken = "remarkable-device-token"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/email-to-remarkable/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("email-to-remarkable-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}
