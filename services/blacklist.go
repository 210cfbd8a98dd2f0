package services

import (
	"bufio"
	"os"
	"strings"
)

// defaultBlackList is used when no blacklist file is configured.
var defaultBlackList = []string{
	"Password1!", "Password123!", "Qwerty123!", "Welcome1!", "Admin123!",
	"Letmein1!", "P@ssw0rd", "P@ssword1", "Passw0rd!", "Abcd1234!",
}

// LoadBlackList reads one common password per line.
func LoadBlackList(filePath string) (map[string]bool, error) {
	if filePath == "" {
		return DefaultBlackList(), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	blackList := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			blackList[line] = true
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return blackList, nil
}

func DefaultBlackList() map[string]bool {
	blackList := make(map[string]bool, len(defaultBlackList))
	for _, p := range defaultBlackList {
		blackList[p] = true
	}
	return blackList
}
