package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"taocv/internal/config"
	"taocv/internal/database"
	"taocv/internal/storage"
	"taocv/internal/template"
)

// 运维命令行工具：从本地 HTML 文件导入模板，或列出已编译产物。
func main() {
	var (
		htmlFile      = flag.String("html-file", "", "模板 HTML 文件路径（导入模式必填）")
		name          = flag.String("name", "", "模板名称（导入模式必填）")
		category      = flag.String("category", "", "模板分类（可选）")
		style         = flag.String("style", "", "模板风格（可选）")
		listArtifacts = flag.Bool("list-artifacts", false, "列出已编译的模板产物")
		limit         = flag.Int("limit", 50, "列出产物的最大数量")
	)
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	artifacts := storage.NewArtifactStore(storageClient, cfg.Template.ArtifactPrefix)

	ctx := context.Background()

	if *listArtifacts {
		metas, err := artifacts.List(ctx, *limit)
		if err != nil {
			log.Fatalf("list artifacts: %v", err)
		}
		for _, meta := range metas {
			fmt.Printf("%s\t%d bytes\t%s\n", meta.Key, meta.Size, meta.LastModified.Format("2006-01-02 15:04:05"))
		}
		return
	}

	if strings.TrimSpace(*htmlFile) == "" || strings.TrimSpace(*name) == "" {
		log.Fatal("missing required flags: --html-file and --name (or use --list-artifacts)")
	}

	rawHTML, err := os.ReadFile(*htmlFile)
	if err != nil {
		log.Fatalf("read html file: %v", err)
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	service := template.NewService(db, artifacts, nil, logger)

	created, err := service.CreateFromHTML(ctx, template.UploadRequest{
		Name:     strings.TrimSpace(*name),
		Category: strings.TrimSpace(*category),
		Style:    strings.TrimSpace(*style),
		BaseHTML: string(rawHTML),
	})
	if err != nil {
		log.Fatalf("import template: %v", err)
	}

	fmt.Printf("模板已导入：\n")
	fmt.Printf("ID: %d\n", created.ID)
	fmt.Printf("名称: %s\n", created.Name)
	fmt.Printf("编译产物: %s\n", created.CompiledFilePath)
}
