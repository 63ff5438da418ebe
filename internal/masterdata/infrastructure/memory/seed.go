package memory

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	masterdata "metering-dashboard/internal/masterdata/domain"
)

// Seed is the YAML shape used to populate a Directory.
type Seed struct {
	Meters []struct {
		Ref      string   `yaml:"ref"`
		DeviceID string   `yaml:"device_id"`
		Name     string   `yaml:"name"`
		Location []string `yaml:"location"`
		GroupID  string   `yaml:"group_id"`
	} `yaml:"meters"`
	Recipients []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Email       string `yaml:"email"`
		MessagingID string `yaml:"messaging_id"`
	} `yaml:"recipients"`
	Groups map[string][]string `yaml:"groups"`
}

// LoadSeedFile reads a seed file into the directory.
func (d *Directory) LoadSeedFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return d.LoadSeed(raw)
}

// LoadSeed parses YAML seed data into the directory.
func (d *Directory) LoadSeed(raw []byte) error {
	if d == nil {
		return errors.New("memory directory: nil directory")
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("memory directory: parse seed: %w", err)
	}
	for _, m := range seed.Meters {
		entry := masterdata.MeterDirectoryEntry{
			Ref:          m.Ref,
			DeviceID:     m.DeviceID,
			Name:         m.Name,
			LocationPath: m.Location,
			GroupID:      m.GroupID,
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		d.PutMeter(entry)
	}
	for _, r := range seed.Recipients {
		if r.ID == "" {
			return errors.New("memory directory: recipient without id")
		}
		d.PutRecipient(masterdata.Recipient{ID: r.ID, Name: r.Name, Email: r.Email, MessagingID: r.MessagingID})
	}
	for group, members := range seed.Groups {
		d.SetGroup(group, members...)
	}
	return nil
}
