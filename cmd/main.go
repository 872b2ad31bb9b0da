package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/chunker"
	"pdf-chat/internal/config"
	"pdf-chat/internal/db"
	"pdf-chat/internal/embedding"
	"pdf-chat/internal/helper"
	"pdf-chat/internal/llmservice"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/rag"
	"pdf-chat/internal/vectorindex"
)

const configFilePath = "./configs/config.yaml"

// fileList collects -file values; each may also be comma separated.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(value string) error {
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*f = append(*f, p)
		}
	}
	return nil
}

func main() {
	helper.SetupLogger(os.Stderr, "info")
	if err := run(); err != nil {
		fmt.Println(apperr.UserMessage(err))
		os.Exit(1)
	}
}

func run() error {
	var files fileList
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Var(&files, "file", "Document to chat with (repeatable or comma separated)")
	query := flag.String("query", "", "Question to ask; omit for an interactive prompt")
	username := flag.String("user", "", "Username the chat history is stored under")
	dryRun := flag.Bool("dry-run", false, "Print the chunks and exit without embedding")
	showHistory := flag.Bool("history", false, "Print the stored chat history before asking")
	resetHistory := flag.Bool("reset-history", false, "Delete every stored chat history before starting")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	helper.SetupLogger(os.Stderr, cfg.Log.Level)

	if len(files) == 0 {
		return apperr.Newf(apperr.KindExtraction, "read", "please provide at least one document using the -file flag")
	}
	docs, err := readDocuments(files)
	if err != nil {
		return apperr.New(apperr.KindExtraction, "read", err)
	}

	tokenizer, err := chunker.NewTiktoken(cfg.RAG.Encoding)
	if err != nil {
		return apperr.New(apperr.KindConfig, "tokenizer", err)
	}
	splitter := chunker.NewTokenChunker(tokenizer, cfg.RAG.ChunkSize)

	if *dryRun {
		return printChunks(docs, splitter)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pipeline, closeStore, err := buildPipeline(ctx, cfg, splitter, *resetHistory)
	if err != nil {
		return err
	}
	defer closeStore()

	sess, err := rag.NewSessions().Open(*username)
	if err != nil {
		return err
	}

	if err := pipeline.LoadHistory(ctx, sess); err != nil {
		log.Error().Err(err).Msg("Error loading chat history")
	}
	if *showHistory {
		helper.PrettyPrint(sess.History())
	}

	n, err := pipeline.Upload(ctx, sess, docs)
	if err != nil {
		return err
	}
	log.Info().Int("chunks", n).Msg("Documents ready")

	if *query != "" {
		ask(ctx, pipeline, sess, *query)
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return nil
		default:
			ask(ctx, pipeline, sess, line)
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Error reading input")
	}
	return nil
}

func buildPipeline(ctx context.Context, cfg *config.Config, splitter *chunker.TokenChunker, resetHistory bool) (*rag.RAG, func(), error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}

	completer, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	var builder vectorindex.Builder = vectorindex.FlatBuilder{}
	if cfg.RAG.VectorStore == config.VectorStoreChromem {
		if cfg.RAG.DBPath != "" {
			if err := helper.CreateFolder(cfg.RAG.DBPath); err != nil {
				return nil, nil, apperr.New(apperr.KindConfig, "vector store", err)
			}
		}
		builder = vectorindex.NewChromemBuilder(cfg.RAG.DBPath, cfg.RAG.Collection, cfg.RAG.EncryptionKey)
	}

	deps := rag.Deps{
		Chunker:   splitter,
		Embedder:  embedding.NewService(embedder, cfg.EmbedLLM.Timeout()),
		Builder:   builder,
		Completer: completer,
	}

	closeStore := func() {}
	if cfg.Database.Enabled {
		bunDB, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewHistoryStore(bunDB)
		closeStore = func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		}

		setup := db.InitDB
		if resetHistory {
			setup = db.ResetHistories
		}
		if err := setup(ctx, bunDB); err != nil {
			closeStore()
			return nil, nil, err
		}
		deps.History = store
	} else if resetHistory {
		log.Warn().Msg("History store is disabled, nothing to reset")
	}

	return rag.NewRAG(deps, &cfg.RAG), closeStore, nil
}

func ask(ctx context.Context, pipeline *rag.RAG, sess *rag.Session, question string) {
	response, err := pipeline.Ask(ctx, sess, question)
	if err != nil {
		log.Debug().Err(err).Str("kind", apperr.KindOf(err).String()).Msg("Ask failed")
		if response == nil {
			fmt.Printf("%s\n\n", apperr.UserMessage(err))
			return
		}
		log.Warn().Err(err).Msg("Answer was not saved to history")
	}

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range response.Source {
		fmt.Printf("%s\n---\n", s)
	}
	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func readDocuments(paths []string) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, models.Document{Name: filepath.Base(p), Data: data})
	}
	return docs, nil
}

func printChunks(docs []models.Document, splitter *chunker.TokenChunker) error {
	text, err := parser.ExtractDocuments(docs)
	if err != nil {
		return err
	}
	var chunks []models.Chunk
	for chunk := range splitter.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	log.Info().Int("chunks", len(chunks)).Int("size", splitter.Size()).Msg("Parsed content")
	helper.PrettyPrint(chunks)
	return nil
}
