package bincode

import "os"

// ReadFile parses the program stored at path.
func ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, path)
}

// WriteFile serializes p to path, truncating any existing file.
func WriteFile(path string, p *Program) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Write(f, p); err != nil {
		return err
	}
	return f.Close()
}
