package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	gitconfig "github.com/go-git/go-git/v5/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var ErrCannotFindPrivKey = errors.New("cannot find private key")

// getGpgKeyReader returns a reader for the armored GPG private key.
func getGpgKeyReader(gpgKeyPath string) (io.Reader, error) {
	gpgKeyData, err := os.ReadFile(gpgKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	return strings.NewReader(string(gpgKeyData)), nil
}

// getGpgKey returns the GPG key entity from the given reader, prompting for
// the passphrase to decrypt it.
func getGpgKey(gpgKeyReader io.Reader) (*openpgp.Entity, error) {
	entityList, err := openpgp.ReadArmoredKeyRing(gpgKeyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	entity := entityList[0]
	if entity == nil || entity.PrivateKey == nil {
		return nil, ErrCannotFindPrivKey
	}

	fmt.Print("Enter the passphrase for your GPG key: ") //nolint:forbidigo // interactive prompt
	passphrase, err := term.ReadPassword(0)
	// assume the passphrase to be empty if unable to read from the terminal
	if err != nil {
		if strings.TrimSpace(err.Error()) == "inappropriate ioctl for device" {
			passphrase = []byte("")
		} else {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
	}
	fmt.Println() //nolint:forbidigo // interactive prompt

	if err = entity.PrivateKey.Decrypt(passphrase); err != nil {
		return nil, fmt.Errorf("failed to decrypt GPG key: %w", err)
	}

	log.Info("Successfully decrypted GPG key")
	return entity, nil
}

// resolveSignKey returns the signing key when the repository or global git
// config asks for GPG-signed commits, and nil otherwise.
func resolveSignKey(
	repoCfg *gitconfig.Config,
	globalGitConfig *gitconfig.Config,
	globalConfig *GlobalConfig,
) (*openpgp.Entity, error) {
	gpgSign := getOptionFromConfig(repoCfg, globalGitConfig, "commit", "gpgsign")
	gpgFormat := getOptionFromConfig(repoCfg, globalGitConfig, "gpg", "format")

	if gpgSign != "true" || gpgFormat == "ssh" {
		return nil, nil
	}

	if globalConfig.GpgKeyPath == "" {
		log.Warn("Commit signing is enabled but no gpg_key_path is configured, committing unsigned")
		return nil, nil
	}

	log.Info("Signing commit with GPG key")
	gpgKeyReader, err := getGpgKeyReader(globalConfig.GpgKeyPath)
	if err != nil {
		return nil, err
	}

	return getGpgKey(gpgKeyReader)
}
