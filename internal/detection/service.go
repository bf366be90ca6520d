// Package detection simulates object detection over downloaded media,
// producing synthetic labels. Real model inference is out of scope; the
// output format matches what a production detector would emit.
package detection

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Detection is one synthetic label for a downloaded image.
type Detection struct {
	MessageID     int64
	ChannelName   string
	DetectedClass string
	Confidence    float64
	ImageCategory string
	AnalyzedAt    string
}

// Service scans the media tree and writes detection rows as CSV.
type Service struct {
	mediaDir   string
	outputPath string

	now func() time.Time
}

// NewService creates a detection service reading from mediaDir and writing
// to <processedDir>/detections.csv.
func NewService(mediaDir, processedDir string) *Service {
	return &Service{
		mediaDir:   mediaDir,
		outputPath: filepath.Join(processedDir, "detections.csv"),
		now:        time.Now,
	}
}

// Run scans <mediaDir>/<channel>/<date>/<message_id>.jpg and writes one
// synthetic detection per image. A missing media tree is a warning and
// yields zero detections.
func (s *Service) Run() (int, error) {
	detections, err := s.scan()
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Warnf("Media directory not found, skipping image analysis: %s", s.mediaDir)
			return 0, nil
		}
		return 0, err
	}

	if err := s.write(detections); err != nil {
		return 0, err
	}

	logrus.Infof("Saved %d detections to %s", len(detections), s.outputPath)
	return len(detections), nil
}

func (s *Service) scan() ([]Detection, error) {
	channels, err := os.ReadDir(s.mediaDir)
	if err != nil {
		return nil, err
	}

	analyzedAt := s.now().UTC().Format(time.RFC3339)
	var detections []Detection
	for _, channelEntry := range channels {
		if !channelEntry.IsDir() {
			continue
		}
		channel := channelEntry.Name()

		dates, err := os.ReadDir(filepath.Join(s.mediaDir, channel))
		if err != nil {
			return nil, err
		}
		for _, dateEntry := range dates {
			if !dateEntry.IsDir() {
				continue
			}
			images, err := os.ReadDir(filepath.Join(s.mediaDir, channel, dateEntry.Name()))
			if err != nil {
				return nil, err
			}
			for _, image := range images {
				name := image.Name()
				if !isImageFile(name) {
					continue
				}
				messageID, err := strconv.ParseInt(strings.TrimSuffix(name, filepath.Ext(name)), 10, 64)
				if err != nil {
					logrus.Warnf("Skipping image with non-numeric name: %s", name)
					continue
				}
				detections = append(detections, synthesize(messageID, channel, analyzedAt))
			}
		}
	}
	return detections, nil
}

// synthesize derives a deterministic label from the channel name and message
// id, standing in for real model output.
func synthesize(messageID int64, channel, analyzedAt string) Detection {
	detectedClass := "product"
	imageCategory := "product_display"
	if strings.Contains(channel, "pharma") {
		detectedClass = "bottle"
		imageCategory = "promotional"
	}
	return Detection{
		MessageID:     messageID,
		ChannelName:   channel,
		DetectedClass: detectedClass,
		Confidence:    0.8 + float64(messageID%10)*0.02,
		ImageCategory: imageCategory,
		AnalyzedAt:    analyzedAt,
	}
}

func (s *Service) write(detections []Detection) error {
	if err := os.MkdirAll(filepath.Dir(s.outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(s.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create detections file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"message_id", "channel_name", "detected_class",
		"confidence_score", "image_category", "analysis_timestamp"}); err != nil {
		return err
	}
	for _, d := range detections {
		record := []string{
			strconv.FormatInt(d.MessageID, 10),
			d.ChannelName,
			d.DetectedClass,
			strconv.FormatFloat(d.Confidence, 'f', 2, 64),
			d.ImageCategory,
			d.AnalyzedAt,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
