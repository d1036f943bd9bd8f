package cmd

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed driverTemplate.txt
var driverTemplate string

//go:embed driverBuilderTemplate.txt
var driverBuilderTemplate string

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Create and manage drivers.",
	Long:  "`driver --create [DriverName]` creates a new driver package.",
	Run: func(cmd *cobra.Command, args []string) {
		driverName, _ := cmd.Flags().GetString("create")
		if driverName != "" {
			if !inGitRepo() {
				log.Fatalf(
					"Error: This command must be run inside a Git repository.",
				)
			}

			err := createDriverFolder(driverName)
			if err != nil {
				log.Fatalf("Error creating driver: %v", err)
			} else {
				fmt.Printf(
					"Driver '%s' created successfully!\n",
					driverName,
				)
			}

			errFile := generateDriverFile(driverName)
			if errFile != nil {
				log.Fatalf("Error generating driver file: %v\n", errFile)
			} else {
				fmt.Println("Driver file generated successfully!")
			}

			errBuilder := generateDriverBuilderFile(driverName)
			if errBuilder != nil {
				log.Fatalf("Error generating builder file: %v\n", errBuilder)
			} else {
				fmt.Println("Builder file generated successfully!")
			}
		} else {
			fmt.Println("Action not valid.")
		}
	},
}

func init() {
	rootCmd.AddCommand(driverCmd)
	driverCmd.Flags().String("create", "", "Create a new driver")
}

// Check if current operation is in a Git repository
func inGitRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = filepath.Dir(".")

	output, err := cmd.Output()
	if err != nil {
		return false
	}

	return strings.TrimSpace(string(output)) == "true"
}

// Create folder for the new driver
func createDriverFolder(name string) error {
	_, err := os.Stat(name)
	if err == nil {
		return fmt.Errorf("folder '%s' already exists", name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%v", err)
	}

	return os.MkdirAll(name, 0755)
}

// Create driver file for the new driver
func generateDriverFile(folder string) error {
	// Ensure the folder exists before proceeding
	_, errFind := os.Stat(folder)
	if os.IsNotExist(errFind) {
		return fmt.Errorf("failed to find folder: %s", folder)
	} else if errFind != nil {
		return fmt.Errorf("%v", errFind)
	}

	filePath := filepath.Join(folder, "driver.go")
	placeholder := "{{packageName}}"
	packageName := filepath.Base(folder)
	content := strings.Replace(driverTemplate, placeholder, packageName, -1)

	err := os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return fmt.Errorf("%v", err)
	}

	return nil
}

// Create builder file for the new driver
func generateDriverBuilderFile(folder string) error {
	// Ensure the folder exists before proceeding
	_, errFind := os.Stat(folder)
	if os.IsNotExist(errFind) {
		return fmt.Errorf("failed to find folder: %s", folder)
	} else if errFind != nil {
		return fmt.Errorf("%v", errFind)
	}

	filePath := filepath.Join(folder, "builder.go")
	placeholder := "{{packageName}}"
	packageName := filepath.Base(folder)
	content := strings.Replace(
		driverBuilderTemplate, placeholder, packageName, -1)

	err := os.WriteFile(filePath, []byte(content), 0644)
	if err != nil {
		return fmt.Errorf("%v", err)
	}

	return nil
}
