// Package main provides the wldd GUI application.
package main

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

func main() {
	myApp := app.New()
	myWindow := myApp.NewWindow("wldd - PE 依赖查看器")
	myWindow.Resize(fyne.NewSize(900, 700))

	// File path
	filePathEntry := widget.NewEntry()
	filePathEntry.SetPlaceHolder("选择PE文件...")

	// Search directories
	var dirs []string
	dirList := widget.NewList(
		func() int { return len(dirs) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(fmt.Sprintf("%d. %s", id+1, dirs[id]))
		},
	)
	selected := -1
	dirList.OnSelected = func(id widget.ListItemID) { selected = id }
	dirList.OnUnselected = func(widget.ListItemID) { selected = -1 }

	dirEntry := widget.NewEntry()
	dirEntry.SetPlaceHolder("搜索目录...")

	addDir := func(dir string) {
		if dir == "" {
			return
		}
		dirs = append(dirs, dir)
		dirEntry.SetText("")
		dirList.Refresh()
	}

	defaultsCheck := widget.NewCheck("同时搜索系统目录", nil)
	defaultsCheck.SetChecked(true)
	allCheck := widget.NewCheck("列出所有匹配目录", nil)

	// Analysis output
	analysisOutput := widget.NewMultiLineEntry()
	analysisOutput.SetPlaceHolder("分析结果将显示在这里...")
	analysisOutput.Disable()

	// Status label
	statusLabel := widget.NewLabel("就绪")

	// File picker button
	fileButton := widget.NewButton("选择文件", func() {
		dialog.ShowFileOpen(func(file fyne.URIReadCloser, err error) {
			if err != nil || file == nil {
				return
			}
			defer func() { _ = file.Close() }()
			filePathEntry.SetText(file.URI().Path())
		}, myWindow)
	})

	folderButton := widget.NewButton("选择目录", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			addDir(uri.Path())
		}, myWindow)
	})
	addButton := widget.NewButton("添加", func() { addDir(dirEntry.Text) })
	removeButton := widget.NewButton("移除", func() {
		if selected < 0 || selected >= len(dirs) {
			return
		}
		dirs = append(dirs[:selected], dirs[selected+1:]...)
		dirList.UnselectAll()
		dirList.Refresh()
	})

	// Analyze button
	analyzeButton := widget.NewButton("分析", func() {
		if filePathEntry.Text == "" {
			dialog.ShowError(fmt.Errorf("请先选择PE文件"), myWindow)
			return
		}

		req := request{
			path:            filePathEntry.Text,
			dirs:            append([]string(nil), dirs...),
			includeDefaults: defaultsCheck.Checked,
			all:             allCheck.Checked,
		}
		statusLabel.SetText("正在分析...")
		go func() {
			result, err := analyzeFile(context.Background(), req)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, myWindow)
					statusLabel.SetText("分析失败")
					return
				}
				analysisOutput.SetText(result.text)
				statusLabel.SetText(result.status)
			})
		}()
	})

	// Layout
	fileBox := container.NewBorder(nil, nil, nil, fileButton, filePathEntry)
	dirBox := container.NewBorder(nil, nil, nil,
		container.NewHBox(addButton, folderButton, removeButton),
		dirEntry,
	)

	analysisBox := container.NewVScroll(analysisOutput)

	dirPanel := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("搜索目录 (按顺序):"),
			dirBox,
		),
		container.NewVBox(defaultsCheck, allCheck),
		nil, nil,
		dirList,
	)

	mainContent := container.NewBorder(
		container.NewVBox(
			widget.NewLabel("PE文件路径:"),
			fileBox,
			widget.NewSeparator(),
			analyzeButton,
		),
		container.NewVBox(
			widget.NewSeparator(),
			statusLabel,
		),
		nil,
		container.NewGridWrap(fyne.NewSize(320, 500), dirPanel),
		analysisBox,
	)

	myWindow.SetContent(mainContent)
	myWindow.ShowAndRun()
}
