package cli

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	genDataOut      string
	genDataIntents  int
	genDataEntities int
	genDataSeed     int64
)

// Sample vocabulary for the generated training corpus.
var (
	policyTypes = []string{"auto", "home", "life", "health"}
	intentNames = []string{"renewal", "claim", "payment", "quote", "complaint"}
)

func newGenDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen-data",
		Short: "Generate sample training corpora for the intent and NER models",
		Long:  "Writes intents.csv (utterance, intent label) and ner_examples.csv\n(utterance with premium and coverage amounts) into the output directory.\nThe corpora are synthetic and contain no real PII.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenData(cmd)
		},
	}

	cmd.Flags().StringVar(&genDataOut, "out", "data", "output directory")
	cmd.Flags().IntVar(&genDataIntents, "intents", 1000, "number of intent classification rows")
	cmd.Flags().IntVar(&genDataEntities, "entities", 500, "number of entity recognition rows")
	cmd.Flags().Int64Var(&genDataSeed, "seed", 0, "random seed (0 uses a non-deterministic seed)")

	return cmd
}

func runGenData(cmd *cobra.Command) error {
	if err := os.MkdirAll(genDataOut, 0o755); err != nil {
		return err
	}

	var rng *rand.Rand
	if genDataSeed != 0 {
		rng = rand.New(rand.NewSource(genDataSeed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	intentsPath := filepath.Join(genDataOut, "intents.csv")
	if err := writeIntentsCSV(intentsPath, genDataIntents, rng); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", genDataIntents, intentsPath)

	entitiesPath := filepath.Join(genDataOut, "ner_examples.csv")
	if err := writeEntitiesCSV(entitiesPath, genDataEntities, rng); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", genDataEntities, entitiesPath)

	return nil
}

func writeIntentsCSV(path string, rows int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"text", "intent"}); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		intent := intentNames[rng.Intn(len(intentNames))]
		policy := policyTypes[rng.Intn(len(policyTypes))]
		if err := w.Write([]string{intentUtterance(intent, policy), intent}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func intentUtterance(intent, policy string) string {
	switch intent {
	case "renewal":
		return fmt.Sprintf("I want to renew my %s policy.", policy)
	case "claim":
		return fmt.Sprintf("I need to file a claim for my %s policy.", policy)
	case "payment":
		return fmt.Sprintf("How can I make a payment for my %s policy?", policy)
	case "quote":
		return fmt.Sprintf("Can I get a quote for a %s policy?", policy)
	default:
		return fmt.Sprintf("I have a complaint about my %s policy.", policy)
	}
}

func writeEntitiesCSV(path string, rows int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"text", "policy_type", "premium_amount", "coverage"}); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		policy := policyTypes[rng.Intn(len(policyTypes))]
		premium := 100 + rng.Float64()*4900
		coverage := 10000 + rng.Float64()*990000

		text := fmt.Sprintf("My %s insurance has a premium of $%.2f and coverage of $%.2f.",
			policy, premium, coverage)
		row := []string{
			text,
			policy,
			strconv.FormatFloat(premium, 'f', 2, 64),
			strconv.FormatFloat(coverage, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
