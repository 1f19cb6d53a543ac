package identity

import "fmt"

// OpenDirectory builds the directory adapter for a driver name. "static"
// (or empty) serves the given principals map; "sqlite" opens the database
// at sqlitePath.
func OpenDirectory(driver, sqlitePath string, principals map[string]bool) (Directory, error) {
	switch driver {
	case "", "static":
		return NewStaticDirectory(principals), nil
	case "sqlite":
		dir, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open principal directory: %w", err)
		}
		return dir, nil
	default:
		return nil, fmt.Errorf("unknown directory driver %q", driver)
	}
}
