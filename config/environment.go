// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package config

import "os"

// Environment holds the process's GHOSTTYPE_*/ORT_DML_DEVICE_ID
// environment variables, read once at startup. None of these mutate at
// runtime.
type Environment struct {
	BasePath      string
	Log           string
	LogFile       string
	DumpWav       bool
	DumpWavDir    string
	DmlDeviceID   string
	OrtDmlDeviceID string
}

// LoadEnvironment reads the environment variables named in spec §6.
func LoadEnvironment() Environment {
	return Environment{
		BasePath:       os.Getenv("GHOSTTYPE_BASE_PATH"),
		Log:            os.Getenv("GHOSTTYPE_LOG"),
		LogFile:        os.Getenv("GHOSTTYPE_LOG_FILE"),
		DumpWav:        isTruthy(os.Getenv("GHOSTTYPE_DUMP_WAV")),
		DumpWavDir:     os.Getenv("GHOSTTYPE_DUMP_WAV_DIR"),
		DmlDeviceID:    os.Getenv("GHOSTTYPE_DML_DEVICE_ID"),
		OrtDmlDeviceID: os.Getenv("ORT_DML_DEVICE_ID"),
	}
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	default:
		return false
	}
}
