package cmd

import (
	"context"
	"fmt"
	"log"

	"soundscene/config"
	"soundscene/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO bucket self-test",
	Long:  `Connects to MinIO with the configured credentials and lists the audio objects in the bucket.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}
		fmt.Println("Connected.")

		client := storage.GetMinioClient()
		ctx := context.Background()

		var count int
		var bytes int64
		for object := range client.ListObjects(ctx, cfg.MinioBucket, minio.ListObjectsOptions{
			Prefix:    minioPrefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				log.Fatalf("Failed to list objects: %v", object.Err)
			}
			fmt.Printf("  %10d  %s\n", object.Size, object.Key)
			count++
			bytes += object.Size
		}
		fmt.Printf("%d objects, %d bytes total\n", count, bytes)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "Filter objects by key prefix")
}
