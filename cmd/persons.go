package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/imagecheck"
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "Manage the persons of a person group",
	Long: `Create, list and delete persons and attach face images to them. Every
command works on --group, which defaults to FACE_GROUP_ID.`,
}

var personsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsCreate,
}

var personsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persons",
	Args:  cobra.NoArgs,
	RunE:  runPersonsList,
}

var personsDeleteCmd = &cobra.Command{
	Use:   "delete <person-id>",
	Short: "Delete a person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsDelete,
}

var personsAddFaceCmd = &cobra.Command{
	Use:   "add-face <person-id> <image>",
	Short: "Add a face image to a person",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersonsAddFace,
}

var personsEnrollCmd = &cobra.Command{
	Use:   "enroll <dir>",
	Short: "Create persons from a directory of face images",
	Long: `Create one person per subdirectory of <dir>, named after the subdirectory,
and add every image inside it as a face of that person.

Layout:
  faces/
    Kavya Ravi/
      1.jpg
      2.jpg

Use --train to queue group training once all faces are added.`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonsEnroll,
}

func init() {
	rootCmd.AddCommand(personsCmd)
	personsCmd.AddCommand(personsCreateCmd, personsListCmd, personsDeleteCmd, personsAddFaceCmd, personsEnrollCmd)

	personsCmd.PersistentFlags().String("group", "", "Person group ID (default FACE_GROUP_ID)")
	personsCreateCmd.Flags().String("user-data", "", "Optional user data stored with the person")
	personsEnrollCmd.Flags().Bool("train", false, "Queue group training after enrollment")
}

func personsClient(cmd *cobra.Command) (*faceapi.Client, string, func(), error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, "", nil, err
	}
	client, err := newFaceClient(cfg, logger)
	if err != nil {
		return nil, "", nil, err
	}
	flush := func() { _ = logger.Sync() }
	return client, groupFlag(cfg.FaceAPI.GroupID, mustGetString(cmd, "group")), flush, nil
}

func runPersonsCreate(cmd *cobra.Command, args []string) error {
	client, groupID, done, err := personsClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	personID, err := client.CreatePerson(context.Background(), groupID, args[0], mustGetString(cmd, "user-data"))
	if err != nil {
		return err
	}
	fmt.Printf("Created person %s (%s) in %s\n", args[0], personID, groupID)
	return nil
}

func runPersonsList(cmd *cobra.Command, args []string) error {
	client, groupID, done, err := personsClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	persons, err := client.ListPersons(context.Background(), groupID)
	if err != nil {
		return describeNotFound(err, "person group %s", groupID)
	}
	return printJSON(persons)
}

func runPersonsDelete(cmd *cobra.Command, args []string) error {
	client, groupID, done, err := personsClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	if err := client.DeletePerson(context.Background(), groupID, args[0]); err != nil {
		return describeNotFound(err, "person %s in %s", args[0], groupID)
	}
	fmt.Printf("Deleted person %s from %s\n", args[0], groupID)
	return nil
}

func runPersonsAddFace(cmd *cobra.Command, args []string) error {
	data, err := readFaceImage(args[1])
	if err != nil {
		return err
	}
	client, groupID, done, err := personsClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	faceID, err := client.AddPersonFace(context.Background(), groupID, args[0], data)
	if err != nil {
		return describeNotFound(err, "person %s in %s", args[0], groupID)
	}
	fmt.Printf("Added face %s to person %s\n", faceID, args[0])
	return nil
}

// enrollment maps a person name to its image paths.
type enrollment struct {
	name   string
	images []string
}

// collectEnrollments reads one level of subdirectories under dir. Persons
// without images are skipped.
func collectEnrollments(dir string) ([]enrollment, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("cannot read folder %s: %w", dir, err)
	}

	var (
		result []enrollment
		total  int
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		personDir := filepath.Join(dir, entry.Name())
		files, err := os.ReadDir(personDir)
		if err != nil {
			return nil, 0, fmt.Errorf("cannot read folder %s: %w", personDir, err)
		}
		var images []string
		for _, f := range files {
			if !f.IsDir() && isImageFile(f.Name()) {
				images = append(images, filepath.Join(personDir, f.Name()))
			}
		}
		if len(images) == 0 {
			continue
		}
		sort.Strings(images)
		result = append(result, enrollment{name: entry.Name(), images: images})
		total += len(images)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result, total, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
		return true
	}
	return false
}

func readFaceImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read image: %w", err)
	}
	if _, err := imagecheck.Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func runPersonsEnroll(cmd *cobra.Command, args []string) error {
	enrollments, total, err := collectEnrollments(args[0])
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("No person folders with images found.")
		return nil
	}

	client, groupID, done, err := personsClient(cmd)
	if err != nil {
		return err
	}
	defer done()

	fmt.Printf("Enrolling %d person(s) with %d image(s) into %s\n", len(enrollments), total, groupID)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	ctx := context.Background()
	var (
		failures []string
		added    int
	)
	for _, e := range enrollments {
		personID, err := client.CreatePerson(ctx, groupID, e.name, "")
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", e.name, err))
			_ = bar.Add(len(e.images))
			continue
		}
		for _, path := range e.images {
			data, err := readFaceImage(path)
			if err == nil {
				_, err = client.AddPersonFace(ctx, groupID, personID, data)
			}
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			} else {
				added++
			}
			_ = bar.Add(1)
		}
	}
	fmt.Println()

	for _, msg := range failures {
		fmt.Printf("Failed: %s\n", msg)
	}
	fmt.Printf("Added %d of %d face(s)\n", added, total)
	if added == 0 {
		return fmt.Errorf("no faces were enrolled")
	}

	if mustGetBool(cmd, "train") {
		if err := client.TrainPersonGroup(ctx, groupID); err != nil {
			return err
		}
		fmt.Printf("Training of %s queued\n", groupID)
	}
	return nil
}
