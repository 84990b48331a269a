package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/database"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/auth"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		db, err := database.New(cfg, true)
		if err != nil {
			return err
		}
		defer db.Close()

		log.Info("database migrated", zap.String("dbname", cfg.Database.DBName))
		return nil
	},
}

var (
	evalTrainPath string
	evalTestPath  string
	evalWorkspace string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Train on a JSON file and evaluate on another, without a database",
	RunE:  runEvaluate,
}

var (
	adminUsername string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an approved administrator account",
	RunE:  runCreateAdmin,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTrainPath, "train", "", "training data JSON file")
	evaluateCmd.Flags().StringVar(&evalTestPath, "test", "", "test data JSON file")
	evaluateCmd.Flags().StringVar(&evalWorkspace, "workspace", "cli", "workspace id")
	_ = evaluateCmd.MarkFlagRequired("train")
	_ = evaluateCmd.MarkFlagRequired("test")

	createAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "admin username")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	services, err := service.NewServices(repository.NewMemoryRepositories(), cfg, nil, log)
	if err != nil {
		return err
	}

	trainRecords, err := readRecords(evalTrainPath)
	if err != nil {
		return err
	}
	ds, err := services.Dataset.Create(ctx, &dataset.CreateRequest{
		Name:        evalTrainPath,
		WorkspaceID: evalWorkspace,
		Records:     trainRecords,
	})
	if err != nil {
		return err
	}
	if _, err := services.Classifier.Train(ctx, ds); err != nil {
		return err
	}

	testRecords, err := readRecords(evalTestPath)
	if err != nil {
		return err
	}
	result, err := services.Evaluation.EvaluateRecords(ctx, testRecords, evalWorkspace, "")
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	repos, _, closeDB, err := openRepositories(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	authSvc, err := auth.NewService(repos.User, cfg.Auth, log)
	if err != nil {
		return err
	}
	user, err := authSvc.CreateAdmin(cmd.Context(), &auth.RegisterRequest{
		Username: adminUsername,
		Email:    adminEmail,
		Password: adminPassword,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "admin created: %s (%s)\n", user.Username, user.ID)
	return nil
}

func readRecords(path string) ([]dataset.RawRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return dataset.ParseRecords(raw)
}
