package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/logging"
	"github.com/Krimson/eda-forensics/subject/internal/config"
	"github.com/Krimson/eda-forensics/subject/internal/csvreader"
	"github.com/Krimson/eda-forensics/subject/internal/emulator"
	"github.com/Krimson/eda-forensics/subject/internal/generators"
	"github.com/Krimson/eda-forensics/subject/internal/models"
	"github.com/Krimson/eda-forensics/subject/internal/senders"
)

func main() {
	_ = godotenv.Load()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[FATAL] Failed to load config: %v", err)
	}
	defer logging.Setup(cfg.LogFile).Close()

	if cfg.Passport.AccessKey == "" {
		log.Fatalf("[FATAL] Access key is required: pass -key with the dashboard handshake code")
	}

	// Генератор сигнала
	var gen generators.EDAGenerator
	if cfg.Emulator.ReplayPath != "" {
		points, err := csvreader.ReadCSVFile(cfg.Emulator.ReplayPath)
		if err != nil {
			log.Fatalf("[FATAL] Failed to load replay: %v", err)
		}
		gen = generators.NewReplayGenerator(points, cfg.Kernel)
		log.Printf("[INFO] Replaying %d samples from %s", len(points), cfg.Emulator.ReplayPath)
	} else {
		gen, err = generators.NewEDAGenerator(cfg.Kernel, cfg.Emulator.Seed)
		if err != nil {
			log.Fatalf("[FATAL] Failed to create generator: %v", err)
		}
	}

	// Каналы отправки
	var uplinkSender senders.DataSender
	switch cfg.Output.Mode {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Output.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("[FATAL] Redis %s unavailable: %v", cfg.Output.RedisAddr, err)
		}
		uplinkSender = senders.NewRedisSender(client, cfg.Output.RedisKey)
		log.Printf("[INFO] Broadcasting to Redis key %s", cfg.Output.RedisKey)
	default:
		uplinkSender = senders.NewHTTPSender(cfg.Output.UplinkURL, cfg.Output.Timeout)
		log.Printf("[INFO] Broadcasting to %s", cfg.Output.UplinkURL)
	}

	all := []senders.DataSender{uplinkSender}
	if cfg.Output.RecordPath != "" {
		all = append(all, senders.NewJSONLRecorder(cfg.Output.RecordPath))
		log.Printf("[INFO] Recording readings to %s", cfg.Output.RecordPath)
	}
	sender := senders.NewCompositeSender(all...)
	defer sender.Close()

	trail := audit.NewTrail(cfg.Kernel.TerminalMax)
	machine := emulator.NewMachine(cfg.Kernel.BootDuration, cfg.Kernel.SyncLock, trail)
	emu := emulator.NewEmulator(gen, generators.NewSimulatedMotion(cfg.Emulator.Seed, cfg.Emulator.ShakeEvery),
		sender, machine, trail, cfg.Emulator, cfg.Kernel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	passport := models.Passport{
		Subject:   cfg.Passport.Subject,
		Age:       cfg.Passport.Age,
		Sex:       cfg.Passport.Sex,
		Node:      cfg.Passport.Node,
		Handshake: cfg.Passport.AccessKey,
	}
	if err := emu.Run(ctx, cfg.Passport.SessionID, passport); err != nil {
		log.Printf("[ERROR] Emulator stopped with error: %v", err)
	}

	stats := emu.Stats()
	log.Printf("[INFO] Packets: %d, send errors: %d, artifacts: %d, alarms: %d",
		stats.Packets, stats.SendErrors, stats.Artifacts, stats.Alarms)

	// лабораторная сводка в stdout
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(emu.Laboratory()); err != nil {
		log.Printf("[ERROR] Failed to print laboratory summary: %v", err)
	}
}
