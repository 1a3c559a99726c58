package common

import (
	"fmt"
	"io"
	"os"

	"personasim/internal/errors"
	"personasim/internal/extractor"
	"personasim/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return string(content), nil
}

// ReadDocument returns the text of a txt, md, pdf or docx file.
func (fp *FileProcessor) ReadDocument(filename string) (string, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		code := errors.ErrCodeFileNotReadable
		if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
			code = errors.ErrCodeFileNotFound
		}
		return "", errors.NewInputError(code, fmt.Sprintf("Invalid file %s", filename), err)
	}
	if utils.IsDocumentFile(filename) {
		return extractor.ExtractText(filename)
	}
	if !utils.IsTextFile(filename) {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}
	return fp.ReadFile(filename)
}

// WriteFile writes content to a file, creating its directory
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := utils.WriteFileAtomic(filename, []byte(content)); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateAndReadFiles validates and reads multiple input files
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		content, err := fp.ReadDocument(filename)
		if err != nil {
			return nil, err
		}
		contents[i] = content
	}

	return contents, nil
}

// ValidateOutputFile rejects output paths that name a directory
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		return errors.NewInputError(errors.ErrCodeFileNotWritable,
			fmt.Sprintf("Invalid output file: %s is a directory", filename), nil)
	}

	return nil
}
