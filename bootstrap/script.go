// Package bootstrap composes the first-boot script for a game server instance.
package bootstrap

import (
	"errors"
	"strings"
)

// ErrEmptyLaunchCommand is returned when there is nothing to run after setup.
var ErrEmptyLaunchCommand = errors.New("launch command is empty")

// basePreparation refreshes the package index and installs Docker on Debian.
const basePreparation = `#!/bin/bash
sudo apt-get update && sudo apt-get upgrade -y

sudo apt-get install \
    apt-transport-https \
    ca-certificates \
    curl \
    gnupg \
    lsb-release -y

curl -fsSL https://download.docker.com/linux/debian/gpg | sudo gpg --dearmor -o /usr/share/keyrings/docker-archive-keyring.gpg

echo \
  "deb [arch=amd64 signed-by=/usr/share/keyrings/docker-archive-keyring.gpg] https://download.docker.com/linux/debian \
  $(lsb_release -cs) stable" | sudo tee /etc/apt/sources.list.d/docker.list > /dev/null

sudo apt-get update

sudo apt-get install docker-ce docker-ce-cli containerd.io -y

`

// Compose appends launch verbatim to the OS preparation steps.
func Compose(launch string) (string, error) {
	if strings.TrimSpace(launch) == "" {
		return "", ErrEmptyLaunchCommand
	}
	return basePreparation + launch, nil
}
