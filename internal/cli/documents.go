package cli

import (
	"fmt"

	"github.com/akolanti/uniassist/internal/rag/ingest"
	"github.com/spf13/cobra"
)

var forceIngest bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [document]",
	Short: "Ingest a document from the documents folder",
	Long: `Extracts, chunks and embeds a document into its collection. A document that
is already processed is left alone unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List documents and their processing status",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

func init() {
	ingestCmd.Flags().BoolVarP(&forceIngest, "force", "f", false, "drop the existing collection and ingest again")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	result, err := services.Library.Ingest(cmd.Context(), args[0], ingest.Options{Force: forceIngest})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	out := cmd.OutOrStdout()
	switch result.Status {
	case ingest.StatusAlreadyProcessed:
		fmt.Fprintf(out, "%s já estava processado (%d trechos).\n", result.Document, result.ChunkCount)
	default:
		fmt.Fprintf(out, "%s processado: %d trechos.\n", result.Document, result.ChunkCount)
	}
	for _, warning := range result.Warnings {
		cmd.PrintErrf("aviso: %s\n", warning)
	}
	return nil
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	docs, err := services.Library.Documents(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "Nenhum documento encontrado.")
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintf(out, "  %-30s %s\n", doc.Name, doc.Status)
	}
	return nil
}
