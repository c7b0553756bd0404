package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"block-bodies/internal/config"
	"block-bodies/internal/core"
	"block-bodies/internal/observe"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run выполняет прогон и возвращает код завершения процесса
func run(args []string) int {
	flags := pflag.NewFlagSet("block-bodies", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "путь к файлу конфигурации (yaml, json, toml)")
	bodyPath := flags.StringP("body", "b", "", "файл тела; заменяет body_path из конфигурации")
	output := flags.StringP("output", "o", "", "куда сохранить итоговую позу")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Не удалось загрузить конфигурацию: %v. Используется конфигурация по умолчанию.", err)
		cfg = config.DefaultConfig()
	}
	if *bodyPath != "" {
		cfg.BodyPath = *bodyPath
	}
	if *output != "" {
		cfg.OutputPath = *output
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		log.Printf("Некорректный уровень логирования: %v. Используется info.", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем тело
	rig, err := core.NewRig(ctx, cfg, logger, observe.DefaultMetrics())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка сборки тела: %v\n", err)
		return 1
	}

	// Запускаем прогон
	if err := rig.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка во время прогона: %v\n", err)
		return 1
	}
	return 0
}
