package chatlogcli

import (
	"context"
	"fmt"
	"os"

	"github.com/contenox/chatlog/adminservice"
	"github.com/contenox/chatlog/libcipher"
	"github.com/contenox/chatlog/messagestore"
	"github.com/spf13/cobra"
)

func runInitDB(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	dbInstance, err := openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer dbInstance.Close()
	fmt.Println("schema applied")
	return nil
}

func runExport(_ *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	dbInstance, err := openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer dbInstance.Close()

	store := messagestore.New(dbInstance.WithoutTransaction())
	data, err := adminservice.New(store).ExportCSV(ctx, args[0])
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runHashPassword(_ *cobra.Command, args []string) error {
	hash, err := libcipher.NewPasswordHash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
