package cli

import (
	"bufio"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/domaguardian/domaguardian/pkg/client"
)

// Scrypt parameters used for new keystores. Tests lower them.
var (
	scryptN = keystore.StandardScryptN
	scryptP = keystore.StandardScryptP
)

func createAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the signing key",
	}

	cmd.AddCommand(createAccountNewCmd())
	cmd.AddCommand(createAccountImportCmd())
	cmd.AddCommand(createAccountShowCmd())

	return cmd
}

func createAccountNewCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new signing key",
		Long: `Generate a secp256k1 key and store it in an encrypted keystore file.

The passphrase is read from DOMAGUARDIAN_PASSPHRASE or prompted for.

EXAMPLES:
  domaguardian account new
  domaguardian account new --keystore ./operator.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			return storeKey(cmd, key, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keystore")
	return cmd
}

func createAccountImportCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <hex-private-key>",
		Short: "Import a private key into a keystore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("invalid private key: %w", err)
			}
			return storeKey(cmd, key, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keystore")
	return cmd
}

func createAccountShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the signing address",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getKeystore()
			addr, err := keystoreAddress(path)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, map[string]string{"address": addr.Hex(), "keystore": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", addr.Hex(), path)
			return nil
		},
	}
}

func storeKey(cmd *cobra.Command, key *ecdsa.PrivateKey, force bool) error {
	path := getKeystore()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("keystore already exists at %s (use --force to overwrite)", path)
	}

	pass, err := readPassphrase(cmd, "New passphrase: ")
	if err != nil {
		return err
	}
	if pass == "" {
		return errors.New("passphrase cannot be empty")
	}

	data, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, pass, scryptN, scryptP)
	if err != nil {
		return fmt.Errorf("encrypting key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing keystore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Fprintf(cmd.OutOrStdout(), "Keystore written to %s (mode 0600)\n", path)
	return nil
}

// keystoreAddress reads the address of a keystore file without decrypting it.
func keystoreAddress(path string) (common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return common.Address{}, fmt.Errorf("no keystore at %s (run 'domaguardian account new')", path)
		}
		return common.Address{}, err
	}
	var v struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return common.Address{}, fmt.Errorf("parsing keystore: %w", err)
	}
	if !common.IsHexAddress(v.Address) {
		return common.Address{}, fmt.Errorf("keystore %s has no address", path)
	}
	return common.HexToAddress(v.Address), nil
}

// loadSigner returns the private key used to sign writes.
func loadSigner(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	if hexKey := os.Getenv("DOMAGUARDIAN_PRIVATE_KEY"); hexKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("DOMAGUARDIAN_PRIVATE_KEY: %w", err)
		}
		return key, nil
	}

	path := getKeystore()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no keystore at %s (run 'domaguardian account new' or pass --address)", path)
		}
		return nil, err
	}
	pass, err := readPassphrase(cmd, "Passphrase: ")
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(data, pass)
	if err != nil {
		return nil, fmt.Errorf("unlocking keystore: %w", err)
	}
	return key.PrivateKey, nil
}

func readPassphrase(cmd *cobra.Command, prompt string) (string, error) {
	if pass, ok := os.LookupEnv("DOMAGUARDIAN_PASSPHRASE"); ok {
		return pass, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		b, err := term.ReadPassword(stdinFd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readClient returns a client for queries.
func readClient() *client.Client {
	return client.New(getServer())
}

// writeClient returns a client that identifies the caller on writes.
func writeClient(cmd *cobra.Command) (*client.Client, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid --address %q", address)
		}
		return client.New(getServer(), client.WithAddress(common.HexToAddress(address))), nil
	}
	key, err := loadSigner(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(getServer(), client.WithSigner(key)), nil
}

// callerAddress returns the address writes are sent as, without unlocking
// the keystore.
func callerAddress() (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid --address %q", address)
		}
		return common.HexToAddress(address), nil
	}
	if hexKey := os.Getenv("DOMAGUARDIAN_PRIVATE_KEY"); hexKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return common.Address{}, fmt.Errorf("DOMAGUARDIAN_PRIVATE_KEY: %w", err)
		}
		return crypto.PubkeyToAddress(key.PublicKey), nil
	}
	return keystoreAddress(getKeystore())
}

// addressArg returns args[i] as an address, or the caller when absent.
func addressArg(args []string, i int) (common.Address, error) {
	if len(args) > i {
		if !common.IsHexAddress(args[i]) {
			return common.Address{}, fmt.Errorf("invalid address %q", args[i])
		}
		return common.HexToAddress(args[i]), nil
	}
	return callerAddress()
}
