package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/accenc/crypto"
	"github.com/jmcleod/accenc/internal/util"
)

var keygenDeviceSecret bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an X25519 key pair",
	Long: `Prints a new base32 private key and its public key. Give the private key to
--key and the public key to --reader on other encoders.

With --device-secret a random device secret is printed instead, as hex and as
a 24-word mnemonic.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keygenDeviceSecret {
			return generateDeviceSecret(cmd.OutOrStdout())
		}
		return generateKeyPair(cmd.OutOrStdout())
	},
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey [private-key]",
	Short: "Print the public key for a private key",
	Long:  `Derives the base32 public key. The private key is read from stdin when not given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var priv string
		if len(args) == 1 {
			priv = args[0]
		} else {
			line, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			priv = line
		}
		pub, err := publicKeyFor(priv)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pub)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd, pubkeyCmd)
	keygenCmd.Flags().BoolVar(&keygenDeviceSecret, "device-secret", false, "Generate a device secret instead of a key pair")
}

func generateKeyPair(w io.Writer) error {
	kp, err := crypto.GenerateX25519Keypair()
	if err != nil {
		return err
	}
	defer util.WipeArray32(&kp.Private)
	fmt.Fprintf(w, "private: %s\n", crypto.EncodeKey(kp.Private))
	fmt.Fprintf(w, "public:  %s\n", crypto.EncodeKey(kp.Public))
	return nil
}

func generateDeviceSecret(w io.Writer) error {
	s, err := crypto.NewDeviceSecret()
	if err != nil {
		return err
	}
	defer s.Destroy()

	words, err := s.Mnemonic()
	if err != nil {
		return err
	}
	var hex string
	if err := s.With(func(b *[crypto.DeviceSecretSize]byte) {
		hex = util.HexEncode(b[:])
	}); err != nil {
		return err
	}
	fmt.Fprintf(w, "hex:      %s\n", hex)
	fmt.Fprintf(w, "mnemonic: %s\n", words)
	return nil
}

func publicKeyFor(priv string) (string, error) {
	kp, err := crypto.ParsePrivateKey(priv)
	if err != nil {
		return "", err
	}
	defer util.WipeArray32(&kp.Private)
	return crypto.EncodeKey(kp.Public), nil
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no key on stdin")
	}
	return strings.TrimSpace(sc.Text()), nil
}
