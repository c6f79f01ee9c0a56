package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"consultor-ia-go/internal/app"
	"consultor-ia-go/internal/config"
	"consultor-ia-go/internal/service"
	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/token"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	forceAdd   bool
	confirmed  bool
)

var rootCmd = &cobra.Command{
	Use:           "kbctl",
	Short:         "Manage the consultant knowledge base",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		config.Conf = *cfg
		if verbose {
			log.Init("debug", "console", "")
		} else {
			log.Init("warn", "console", "")
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Incrementally ingest every supported file under the documents directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := app.NewKnowledge(ctx, &config.Conf)
		if err != nil {
			return err
		}
		root := config.Conf.Knowledge.DocsDir
		if len(args) == 1 {
			root = args[0]
		}
		report, err := k.Ingestor.IngestDirectory(ctx, root)
		if err != nil {
			return err
		}
		fmt.Printf("processados: %d  inalterados: %d  erros: %d\n", report.Processed, report.Skipped, report.Failed)
		for _, f := range report.Files {
			if f.Error != "" {
				fmt.Printf("  %s: %s\n", f.Path, f.Error)
			}
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Ingest a single file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(svc.AddFile(cmd.Context(), args[0], forceAdd))
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Show whether a file is already in the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		check, err := svc.CheckFile(args[0])
		if err != nil {
			return err
		}
		return printJSON(check)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <file>",
	Short: "Forget a file in the manifest (its chunks stay until clear)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		removed, err := svc.RemoveFile(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s não está no manifesto", args[0])
		}
		fmt.Println("removido do manifesto; os trechos permanecem até 'kbctl clear'")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print chunk count and manifest entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported files in the documents directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		docs, err := svc.ListDocuments()
		if err != nil {
			return err
		}
		for _, d := range docs {
			fmt.Printf("%-40s %-6s %10d  %s\n", d.Name, d.Type, d.Size, d.Folder)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every chunk and the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmed {
			return fmt.Errorf("use --yes para confirmar a limpeza da base")
		}
		svc, err := newDocumentService(cmd.Context())
		if err != nil {
			return err
		}
		if err := svc.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("base de conhecimento limpa")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id> <username>",
	Short: "Issue a JWT for calling the API when auth is enabled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("user-id inválido: %w", err)
		}
		auth := config.Conf.Auth
		if auth.Secret == "" {
			return fmt.Errorf("auth.secret não configurado")
		}
		tok, err := token.NewJWTManager(auth.Secret, auth.AccessTokenExpireHours).GenerateToken(uint(id), args[1])
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	addCmd.Flags().BoolVar(&forceAdd, "force", false, "Reprocess even if the file is unchanged")
	clearCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm")

	rootCmd.AddCommand(ingestCmd, addCmd, checkCmd, removeCmd, statsCmd, listCmd, clearCmd, tokenCmd)
}

// newDocumentService 只启用同步入库，不连接 MySQL、MinIO 与 Kafka。
func newDocumentService(ctx context.Context) (service.DocumentService, error) {
	k, err := app.NewKnowledge(ctx, &config.Conf)
	if err != nil {
		return nil, err
	}
	return service.NewDocumentService(config.Conf.Knowledge.DocsDir, k.Ingestor, k.Manifest, nil, nil, nil), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
