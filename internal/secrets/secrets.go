// Package secrets reads provider credentials from an age-encrypted JSON file.
// It is the fallback source behind environment variables: any failure to read
// or decrypt the file is logged and reported as "no value", never as an error,
// so a corrupt credentials file degrades to an unconfigured provider rather
// than preventing startup.
package secrets

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"

	"filippo.io/age"
)

// Store holds decrypted credential key/value pairs.
type Store struct {
	values map[string]string
}

// Open decrypts the credentials file at path using the age identity file at
// identityPath and parses it as a flat JSON object. Either path being empty,
// or any read/decrypt/parse failure, yields an empty store.
func Open(path, identityPath string) *Store {
	s := &Store{values: map[string]string{}}
	if path == "" || identityPath == "" {
		return s
	}

	identityData, err := os.ReadFile(identityPath)
	if err != nil {
		log.Printf("secrets: could not read identity file: %v", err)
		return s
	}

	identities, err := age.ParseIdentities(bytes.NewReader(identityData))
	if err != nil {
		log.Printf("secrets: could not parse identity file: %v", err)
		return s
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("secrets: could not open credentials file: %v", err)
		return s
	}
	defer f.Close()

	plain, err := age.Decrypt(f, identities...)
	if err != nil {
		log.Printf("secrets: could not decrypt credentials file: %v", err)
		return s
	}

	data, err := io.ReadAll(plain)
	if err != nil {
		log.Printf("secrets: could not read decrypted credentials: %v", err)
		return s
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		log.Printf("secrets: credentials file is not valid JSON: %v", err)
		return s
	}

	s.values = values
	return s
}

// Get returns the value for key, or the empty string when absent.
func (s *Store) Get(key string) string {
	return s.values[key]
}
