package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "library-sorter",
	Short: "Sort images into folder profiles using CLIP embeddings",
	Long: `Library Sorter keeps an image library organised into per-person folders.

Every folder under a namespace (LIBRARY_ROOT/<namespace>/...) becomes a
profile whose centroid is the mean CLIP embedding of its images. Images in
source folders such as "Mix" are matched against those centroids and either
handled automatically (duplicates) or proposed for review and applied later.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
