package cmd

import (
	"fmt"

	"mixdeck/config"
	"mixdeck/logger"
	"mixdeck/storage"
	"mixdeck/voicegen"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// voicegenCmd renders text to voiceover clips
var voicegenCmd = &cobra.Command{
	Use:   "voicegen [text...]",
	Short: "Generate voiceover clips from text",
	Long: `Render each argument to an mp3 with text-to-speech. Files are written to the
voicegen folder and reused when they already exist. With --upload the clips
are also added to the voiceover pool in the bucket.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		upload, _ := cmd.Flags().GetBool("upload")
		var uploader voicegen.Uploader
		if upload {
			store, err := storage.New(cmd.Context(), cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			uploader = store
		}

		gen := voicegen.New(cfg.Voicegen, uploader)
		for _, text := range args {
			if upload {
				key, err := gen.Publish(cmd.Context(), text)
				if err != nil {
					return err
				}
				fmt.Println(key)
				continue
			}
			path, err := gen.Generate(text)
			if err != nil {
				return err
			}
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicegenCmd)

	voicegenCmd.Flags().Bool("upload", false, "upload generated clips to the voiceover pool")
	voicegenCmd.Flags().String("language", "en", "speech language")
	voicegenCmd.Flags().String("folder", "voiceover", "output folder")

	viper.BindPFlag("voicegen.language", voicegenCmd.Flags().Lookup("language"))
	viper.BindPFlag("voicegen.folder", voicegenCmd.Flags().Lookup("folder"))
}
