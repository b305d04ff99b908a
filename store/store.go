// Package store persists the wallet credentials in a local goleveldb database.
package store

import (
	"errors"

	"github.com/stellar/go/support/log"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"

	supporterrors "github.com/stellar/go/support/errors"

	"github.com/saif727/hedera-wallet-backend/models"
)

// Fixed keys the credentials are stored under.
const (
	AccountIDKey  = "hedera_account_id"
	PrivateKeyKey = "hedera_private_key"
)

// CredentialStore keeps the operator credentials between runs. When a
// passphrase is set the private key is sealed before it is written.
type CredentialStore struct {
	path       string
	db         *goleveldb.DB
	passphrase string
	log        *log.Entry
}

// Open opens or creates the credential database at path
func Open(path, passphrase string, logger *log.Entry) (*CredentialStore, error) {
	options := &opt.Options{
		OpenFilesCacheCapacity: 16,
		BlockCacheCapacity:     1 * opt.MiB,
		WriteBuffer:            1 * opt.MiB,
	}
	db, err := goleveldb.OpenFile(path, options)
	if dberrors.IsCorrupted(err) {
		db, err = goleveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, supporterrors.Wrapf(err, "failed to open credential store %s", path)
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	logger = logger.WithField("store", path)
	logger.WithField("encrypted", passphrase != "").Info("credential store opened")
	return &CredentialStore{path: path, db: db, passphrase: passphrase, log: logger}, nil
}

// Save writes both credential values in one batch
func (s *CredentialStore) Save(creds models.Credentials) error {
	key := []byte(creds.PrivateKey)
	if s.passphrase != "" {
		sealed, err := seal(s.passphrase, key)
		if err != nil {
			return supporterrors.Wrap(err, "failed to encrypt private key")
		}
		key = sealed
	}
	batch := new(goleveldb.Batch)
	batch.Put([]byte(AccountIDKey), []byte(creds.AccountID))
	batch.Put([]byte(PrivateKeyKey), key)
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return supporterrors.Wrap(err, "failed to write credentials")
	}
	return nil
}

// Load reads the stored credentials; it returns nil, nil when none are stored
func (s *CredentialStore) Load() (*models.Credentials, error) {
	accountID, err := s.get(AccountIDKey)
	if err != nil || accountID == nil {
		return nil, err
	}
	key, err := s.get(PrivateKeyKey)
	if err != nil {
		return nil, err
	}
	if key == nil {
		s.log.Warn("stored account id has no private key, ignoring")
		return nil, nil
	}

	if isSealed(key) {
		if s.passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		if key, err = unseal(s.passphrase, key); err != nil {
			return nil, err
		}
	}
	return &models.Credentials{AccountID: string(accountID), PrivateKey: string(key)}, nil
}

func (s *CredentialStore) get(key string) ([]byte, error) {
	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, dberrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, supporterrors.Wrapf(err, "failed to read %s", key)
	}
	return value, nil
}

// Clear removes the stored credentials
func (s *CredentialStore) Clear() error {
	batch := new(goleveldb.Batch)
	batch.Delete([]byte(AccountIDKey))
	batch.Delete([]byte(PrivateKeyKey))
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return supporterrors.Wrap(err, "failed to remove credentials")
	}
	return nil
}

// Close closes the database
func (s *CredentialStore) Close() error {
	return s.db.Close()
}
