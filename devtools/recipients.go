package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	"github.com/openbuilders/ft-multisender/internal/parser"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var separators = []string{" ", ",", "|", "=", "\t", " , "}

var rootCmd = &cobra.Command{
	Use:   "recipients",
	Short: "generates and inspects multisender recipient lists",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "prints a random recipient list",
	Long: "prints a random recipient list in the text format the service accepts, " +
		"mixing separators, implicit accounts and duplicates",
	Run: func(cmd *cobra.Command, args []string) {
		count, _ := cmd.Flags().GetInt("count")
		suffix, _ := cmd.Flags().GetString("suffix")
		maxAmount, _ := cmd.Flags().GetInt64("max")
		implicit, _ := cmd.Flags().GetFloat64("implicit")
		seed, _ := cmd.Flags().GetInt64("seed")

		generate(os.Stdout, rand.New(rand.NewSource(seed)), count, suffix, maxAmount, implicit)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "parses a recipient list and prints the normalized result",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				slog.Error("couldn't open the list", "error", err)
				os.Exit(1)
			}
			defer f.Close()
			in = f
		}

		text, err := io.ReadAll(in)
		if err != nil {
			slog.Error("couldn't read the list", "error", err)
			os.Exit(1)
		}

		list := parser.Parse(string(text))

		fmt.Print(parser.Format(list))
		slog.Info("parsed", "recipients", list.Len(), "total", list.Total())
	},
}

func generate(w io.Writer, rnd *rand.Rand, count int, suffix string, maxAmount int64,
	implicit float64) {

	for i := 0; i < count; i++ {
		account := fmt.Sprintf("user%d.%s", rnd.Intn(count*2), suffix)
		if rnd.Float64() < implicit {
			key := make([]byte, 32)
			rnd.Read(key)
			account = hex.EncodeToString(key)
		}
		if rnd.Intn(4) == 0 {
			account = strings.ToUpper(account[:1]) + account[1:]
		}

		amount := decimal.New(rnd.Int63n(maxAmount*100)+1, -2)
		separator := separators[rnd.Intn(len(separators))]

		fmt.Fprintf(w, "%s%s%s\n", account, separator, amount.String())
	}
}

func init() {
	generateCmd.Flags().Int("count", 100, "number of lines")
	generateCmd.Flags().String("suffix", "testnet", "account suffix")
	generateCmd.Flags().Int64("max", 10, "maximal amount in whole tokens")
	generateCmd.Flags().Float64("implicit", 0.1, "share of implicit accounts")
	generateCmd.Flags().Int64("seed", 1, "random seed")

	rootCmd.AddCommand(generateCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
