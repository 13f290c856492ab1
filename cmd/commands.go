package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"file-qa/internal/chromemdb"
	"file-qa/internal/helper"
	"file-qa/internal/llmservice"
	"file-qa/internal/models"
	"file-qa/internal/parser"
	"file-qa/internal/rag"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const uploadCommand = "/file "

func newIngestCmd(a *app) *cobra.Command {
	var (
		filePath   string
		exportPath string
		importPath string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and store a document, replacing the previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if importPath != "" {
				return a.importSnapshot(cmd.Context(), out, importPath)
			}
			if filePath == "" {
				return errors.New("--file or --import is required")
			}

			if dryRun {
				text, err := parser.LoadFile(filePath)
				if err != nil {
					return err
				}
				chunks, err := parser.ChunkText(text, a.cfg.RAG.ChunkSize, a.cfg.RAG.ChunkOverlap)
				if err != nil {
					return err
				}
				log.Info().Str("file", filePath).Int("chunks", len(chunks)).Msg("Dry run, nothing stored")
				helper.FprettyPrint(out, chunks)
				return nil
			}

			pipeline, store, err := newPipeline(a.cfg, nil)
			if err != nil {
				return err
			}
			defer closeStore(store)

			n, err := pipeline.IngestFile(cmd.Context(), filePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Ingested %d chunks from %s\n", n, filePath)

			if exportPath != "" {
				return exportSnapshot(cmd.Context(), out, store, exportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "document to ingest (pdf, docx, txt, md)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the chunks without embedding or storing them")
	cmd.Flags().StringVar(&exportPath, "export", "", "write a chromem snapshot of the collection to this file")
	cmd.Flags().StringVar(&importPath, "import", "", "restore the chromem collection from a snapshot instead of ingesting")
	return cmd
}

func chromemStore(store rag.VectorStore) (*chromemdb.VectorDBManager, error) {
	m, ok := store.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, errors.New("snapshots are only supported by the chromem vector store")
	}
	return m, nil
}

func exportSnapshot(ctx context.Context, out io.Writer, store rag.VectorStore, filePath string) error {
	m, err := chromemStore(store)
	if err != nil {
		return err
	}
	if err := m.Export(ctx, filePath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported collection to %s\n", filePath)
	return nil
}

func (a *app) importSnapshot(ctx context.Context, out io.Writer, filePath string) error {
	store, err := newStore(&a.cfg.VectorStore)
	if err != nil {
		return err
	}
	defer closeStore(store)

	m, err := chromemStore(store)
	if err != nil {
		return err
	}
	if err := m.Import(ctx, filePath); err != nil {
		return err
	}
	n, err := m.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d chunks from %s\n", n, filePath)
	return nil
}

func newAskCmd(a *app) *cobra.Command {
	var (
		query      string
		showPrompt bool
		noAnswer   bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question about the ingested document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				query = strings.TrimSpace(strings.Join(args, " "))
			}
			if query == "" {
				return errors.New("--query is required")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var answerer rag.Answerer
			if !noAnswer {
				client, err := llmservice.NewClient(&a.cfg.LLM, "")
				if err != nil {
					return err
				}
				answerer = client
			}
			pipeline, store, err := newPipeline(a.cfg, answerer)
			if err != nil {
				return err
			}
			defer closeStore(store)

			if err := pipeline.RequireDocument(ctx); err != nil {
				return fmt.Errorf("%w: run ingest --file <path> first", err)
			}
			if noAnswer {
				results, err := pipeline.Retrieve(ctx, query)
				if err != nil {
					return err
				}
				printResponse(out, &models.PromptResponse{
					Query:   query,
					Source:  resultIDs(results),
					Prompt:  pipeline.BuildPrompt(query, results),
					Results: results,
				}, true)
				return nil
			}

			resp, err := pipeline.Query(ctx, query)
			if err != nil {
				return err
			}
			printResponse(out, resp, showPrompt)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "question to answer")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the assembled prompt")
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "retrieve and print the prompt without calling the chat model")
	return cmd
}

func resultIDs(results []models.QueryResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func printResponse(out io.Writer, resp *models.PromptResponse, showPrompt bool) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", resp.Query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Fprintf(out, "%s\n\n", resp.Source)

	if showPrompt {
		log.Info().Msg("Prompt: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Fprintf(out, "%s\n\n", resp.Prompt)
	}
	if resp.Content != "" {
		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Fprintf(out, "%s\n\n", resp.Content)
	}
}

func newChatCmd(a *app) *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session: load a document and ask questions line by line",
		Long:  "Interactive session. Type a question per line, " + strings.TrimSpace(uploadCommand) + " <path> to switch documents and exit to quit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := bufio.NewScanner(cmd.InOrStdin())

			pipeline, store, err := newPipeline(a.cfg, nil)
			if err != nil {
				return err
			}
			defer closeStore(store)

			session, err := rag.NewSession(connector(&a.cfg.LLM), pipeline)
			if err != nil {
				return err
			}
			log.Debug().Str("session", session.ID()).Msg("Chat session started")

			if err := authenticate(ctx, session, a.cfg.LLM.Key, in, out); err != nil {
				return err
			}
			if filePath != "" {
				if err := uploadFile(ctx, session, filePath, out); err != nil {
					return err
				}
			}

			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					return in.Err()
				}
				line := strings.TrimSpace(in.Text())
				switch {
				case line == "":
					continue
				case line == "exit" || line == "quit":
					return nil
				case strings.HasPrefix(line, uploadCommand):
					if err := uploadFile(ctx, session, strings.TrimSpace(strings.TrimPrefix(line, uploadCommand)), out); err != nil {
						fmt.Fprintf(out, "Error: %v\n", err)
					}
					continue
				}

				resp, err := session.Ask(ctx, line)
				if errors.Is(err, models.ErrNoDocument) {
					fmt.Fprintf(out, "Upload a document first with %s<path>\n", uploadCommand)
					continue
				}
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "%s\n\nSources: %s\n", resp.Content, strings.Join(resp.Source, ", "))
			}
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "document to load at start")
	return cmd
}

// authenticate validates the configured key, prompting for another one while it is rejected
func authenticate(ctx context.Context, session *rag.Session, key string, in *bufio.Scanner, out io.Writer) error {
	for session.State() == rag.StateAwaitingCredential {
		if key == "" {
			fmt.Fprint(out, "API key: ")
			if !in.Scan() {
				return models.ErrNoCredential
			}
			key = strings.TrimSpace(in.Text())
		}
		err := session.SetCredential(ctx, key)
		if errors.Is(err, models.ErrInvalidCredential) || errors.Is(err, models.ErrNoCredential) {
			fmt.Fprintln(out, "The API key was rejected, try again.")
			key = ""
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, session *rag.Session, filePath string, out io.Writer) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	res, err := session.Upload(ctx, filepath.Base(filePath), data)
	if err != nil {
		return err
	}
	if res.Reused {
		fmt.Fprintf(out, "%s is already loaded\n", res.FileName)
		return nil
	}
	fmt.Fprintf(out, "Loaded %s (%d chunks)\n", res.FileName, res.Chunks)
	return nil
}

func newCheckKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-key",
		Short: "Check that the configured API key is accepted by the chat service",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := llmservice.NewClient(&a.cfg.LLM, "")
			if err != nil {
				return err
			}
			if err := client.ValidateKey(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key is valid")
			return nil
		},
	}
}
