// File: cmd/generate.go
package cmd

import (
	"context"

	"github.com/deploymenttheory/go-squashdelta/internal/services"
)

// runGenerate is the root command's action: produce a patch that
// transforms sourcePath into targetPath.
func runGenerate(sourcePath, targetPath, patchPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	service := services.NewDeltaService(cfg, logger)
	if err := service.Generate(context.Background(), sourcePath, targetPath, patchPath); err != nil {
		return err
	}

	logger.WithField("patch", patchPath).Info("patch written")
	return nil
}
