package storage

import (
	"errors"
	"os"
	"syscall"
)

func CopyFile(srcPath string, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return err
	}

	if _, err := destFile.ReadFrom(srcFile); err != nil {
		destFile.Close()
		return err
	}
	return destFile.Close()
}

// CopyOrLinkFile attempts to create a hard link from srcPath to destPath.
// If that fails, it falls back to copying the file contents.
func CopyOrLinkFile(srcPath string, destPath string) error {

	if srcPath == destPath {
		return nil
	}

	// An existing destination has to go first, otherwise linking onto it
	// fails and copying would write through any other link to the old file.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.Link(srcPath, destPath); err == nil {
		return nil
	}

	return CopyFile(srcPath, destPath)
}

// MoveFile renames srcPath to destPath, copying across filesystems when a
// rename is not possible.
func MoveFile(srcPath string, destPath string) error {
	err := os.Rename(srcPath, destPath)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if copyErr := CopyOrLinkFile(srcPath, destPath); copyErr != nil {
		return copyErr
	}

	// The source may already be gone if another cleanup raced us.
	if rmErr := os.Remove(srcPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return nil
}
