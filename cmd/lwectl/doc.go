// Command lwectl controls a linux-wallpaperengine backend: it keeps the saved
// wallpaper settings, builds the engine command line, starts and stops the
// engine, manages favorites, groups and keybindings, installs the login
// service and offers a terminal control panel.
package main
